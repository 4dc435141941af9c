package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querydesk/internal/domain"
)

func TestParseInfersTypes(t *testing.T) {
	in := strings.NewReader(
		"id,name,price,active\n" +
			"1,Widget,9.99,true\n" +
			"2,Gadget,12,false\n" +
			"3,Gizmo,,true\n")

	ds, err := Parse(in)
	require.NoError(t, err)

	require.Len(t, ds.Columns, 4)
	assert.Equal(t, domain.TypeInteger, ds.Columns[0].Type)
	assert.Equal(t, domain.TypeText, ds.Columns[1].Type)
	assert.Equal(t, domain.TypeFloat, ds.Columns[2].Type)
	assert.Equal(t, domain.TypeBoolean, ds.Columns[3].Type)

	require.Equal(t, int64(3), ds.RowCount())
	assert.Equal(t, int64(1), ds.Rows[0][0])
	assert.Equal(t, "Widget", ds.Rows[0][1])
	assert.Equal(t, 9.99, ds.Rows[0][2])
	assert.Equal(t, true, ds.Rows[0][3])

	// Empty cell is a null, not a zero value.
	assert.Nil(t, ds.Rows[2][2])
}

func TestParseMixedColumnFallsBackToText(t *testing.T) {
	in := strings.NewReader("v\n1\ntwo\n3\n")

	ds, err := Parse(in)
	require.NoError(t, err)
	assert.Equal(t, domain.TypeText, ds.Columns[0].Type)
	assert.Equal(t, "1", ds.Rows[0][0])
}

func TestParseIntegerColumnWithFloatBecomesFloat(t *testing.T) {
	in := strings.NewReader("v\n1\n2.5\n3\n")

	ds, err := Parse(in)
	require.NoError(t, err)
	assert.Equal(t, domain.TypeFloat, ds.Columns[0].Type)
	assert.Equal(t, 1.0, ds.Rows[0][0])
	assert.Equal(t, 2.5, ds.Rows[1][0])
}

func TestParseAllEmptyColumnIsText(t *testing.T) {
	in := strings.NewReader("a,b\n1,\n2,\n")

	ds, err := Parse(in)
	require.NoError(t, err)
	assert.Equal(t, domain.TypeText, ds.Columns[1].Type)
	assert.Nil(t, ds.Rows[0][1])
}

func TestParseHeaderOnly(t *testing.T) {
	ds, err := Parse(strings.NewReader("a,b,c\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), ds.RowCount())
	assert.Len(t, ds.Columns, 3)
}

func TestParseEmptyFile(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	var upErr *domain.UploadError
	require.ErrorAs(t, err, &upErr)
}

func TestParseRaggedRowRejected(t *testing.T) {
	_, err := Parse(strings.NewReader("a,b\n1,2\n3\n"))
	var upErr *domain.UploadError
	require.ErrorAs(t, err, &upErr)
}

func TestParseSanitizesAndDeduplicatesHeaders(t *testing.T) {
	in := strings.NewReader("Order ID,Order ID,,2024 total\nx,y,z,w\n")

	ds, err := Parse(in)
	require.NoError(t, err)
	assert.Equal(t, "order_id", ds.Columns[0].Name)
	assert.Equal(t, "order_id_2", ds.Columns[1].Name)
	assert.Equal(t, "column_3", ds.Columns[2].Name)
	assert.Equal(t, "t_2024_total", ds.Columns[3].Name)
}

func TestParseDeduplicatedHeaderSkipsTakenSuffix(t *testing.T) {
	in := strings.NewReader("a,a_2,a,a\n1,2,3,4\n")

	ds, err := Parse(in)
	require.NoError(t, err)
	assert.Equal(t, "a", ds.Columns[0].Name)
	assert.Equal(t, "a_2", ds.Columns[1].Name)
	assert.Equal(t, "a_3", ds.Columns[2].Name)
	assert.Equal(t, "a_4", ds.Columns[3].Name)
}

func TestParseQuotedFields(t *testing.T) {
	in := strings.NewReader("name,comment\n\"Doe, John\",\"He said \"\"hi\"\"\"\n")

	ds, err := Parse(in)
	require.NoError(t, err)
	assert.Equal(t, "Doe, John", ds.Rows[0][0])
	assert.Equal(t, `He said "hi"`, ds.Rows[0][1])
}

func TestSanitizeIdentifier(t *testing.T) {
	cases := map[string]string{
		"Sales Data":     "sales_data",
		"  spaced  ":     "spaced",
		"weird$$chars!!": "weird_chars",
		"UPPER":          "upper",
		"__wrapped__":    "wrapped",
		"123abc":         "t_123abc",
		"***":            "",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeIdentifier(in), "input %q", in)
	}
}

func TestTableNameFromFilename(t *testing.T) {
	name, err := TableNameFromFilename("Monthly Sales.csv")
	require.NoError(t, err)
	assert.Equal(t, "monthly_sales", name)

	name, err = TableNameFromFilename("/tmp/upload/data.final.csv")
	require.NoError(t, err)
	assert.Equal(t, "data_final", name)

	_, err = TableNameFromFilename("???.csv")
	var upErr *domain.UploadError
	require.ErrorAs(t, err, &upErr)
}

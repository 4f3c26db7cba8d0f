package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	args, err := parseArgs([]string{"endpoint_id=1111", "filters=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, "1111", args["endpoint_id"])
	assert.Equal(t, "a=b", args["filters"])
	assert.Equal(t, "", args["empty"])

	_, err = parseArgs([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseArgs([]string{"=x"})
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	v := map[string]interface{}{"id": "1"}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, "text", "### Incidents", v))
	assert.Equal(t, "### Incidents\n", buf.String())

	buf.Reset()
	require.NoError(t, render(&buf, "json", "", v))
	assert.JSONEq(t, `{"id":"1"}`, buf.String())

	buf.Reset()
	require.NoError(t, render(&buf, "yaml", "", v))
	assert.Equal(t, "id: \"1\"\n", buf.String())

	assert.Error(t, render(&buf, "xml", "", v))
}

func TestCommandsCmd_ListsRegistry(t *testing.T) {
	cmd := commandsCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "xdr-isolate-endpoint")
	assert.Contains(t, out.String(), "Verify the API URL and credentials")
	assert.Less(t, strings.Index(out.String(), "test-module"), strings.Index(out.String(), "xdr-get-incidents"))
}

func TestMappingFieldsCmd(t *testing.T) {
	cmd := mappingFieldsCmd()
	cmd.Flags().StringP("output", "o", "text", "")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "type_name: Cortex XDR Incident")
}

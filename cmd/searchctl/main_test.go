package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCanon(t *testing.T) {
	out, err := execute(t, "", "canon", "?tag=b,a&nameSearch=cafe&bogus=1")
	require.NoError(t, err)
	require.Equal(t, "nameSearch=cafe&tag=b%2Ca\n", out)

	out, err = execute(t, "", "canon", "bogus=1")
	require.NoError(t, err)
	require.Equal(t, "(none)\n", out)

	_, err = execute(t, "", "canon")
	require.Error(t, err)
}

func TestArea(t *testing.T) {
	out, err := execute(t, "", "area", "59,61,10,11")
	require.NoError(t, err)
	require.Contains(t, out, "big=false")

	out, err = execute(t, "", "area", "-60,60,-170,170")
	require.NoError(t, err)
	require.Contains(t, out, "big=true")

	out, err = execute(t, "", "area", "--big-area", "1", "59,61,10,11")
	require.NoError(t, err)
	require.Contains(t, out, "big=true")

	_, err = execute(t, "", "area", "Oslo")
	require.Error(t, err)
}

const response = `{"itemList":[
  {"id":"a","addresses":[{"lat":59.9,"lon":10.7}]},
  {"id":"b","addresses":[{"lat":59.9,"lon":10.7}]},
  {"id":"c","addresses":[{"lat":59.9,"lon":10.7}]}
],"itemCount":3}`

func TestPlan_Stdin(t *testing.T) {
	out, err := execute(t, response, "plan", "--limit", "2")
	require.NoError(t, err)
	require.Contains(t, out, "mode=page items=3 total=3")
	require.Contains(t, out, "a\taddress=0\tdetail")
	require.Contains(t, out, "b\taddress=0\tdetail")
	require.Contains(t, out, "c\taddress=0\tabstract")
	require.Contains(t, out, "page 1*=0")
	require.Contains(t, out, "next=2")
}

func TestPlan_FileAndViewport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, os.WriteFile(path, []byte(response), 0o600))

	out, err := execute(t, "", "plan", "--file", path, "--limit", "5", "--viewport", "59,61,10,11")
	require.NoError(t, err)
	require.Contains(t, out, "pagination: none")
	require.Equal(t, 3, strings.Count(out, "\tdetail"))

	_, err = execute(t, "", "plan", "--file", path, "--viewport", "nowhere")
	require.Error(t, err)

	_, err = execute(t, "{", "plan")
	require.Error(t, err)
}

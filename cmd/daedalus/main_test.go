package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Daedalus/pkg/exploration"
)

func TestVersionCmd(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"text", []string{"version"}, "daedalus version " + version + "\n"},
		{"json", []string{"version", "--json"}, "{\n  \"version\": \"" + version + "\"\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			root := newRootCmd()
			root.SetOut(&out)
			root.SetArgs(tt.args)
			require.NoError(t, root.Execute())
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestCommandArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"reset without worksheet", []string{"reset"}},
		{"run-row missing source row", []string{"run-row", "ws-1"}},
		{"stats missing row", []string{"stats", "ws-1"}},
		{"explore missing file", []string{"explore", "sweep"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCmd()
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			root.SetArgs(tt.args)
			assert.Error(t, root.Execute())
		})
	}
}

func TestRunRowRequest(t *testing.T) {
	cmd := newRunRowCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--suffix", "light",
		"--config-id", "cfg-1,cfg-2",
		"--exclude-type", "exploration",
		"--sim-type", "DynamicLap",
		"--notes", "lighter car",
	}))

	req, err := runRowRequest(cmd, "ws-1", "Baseline")
	require.NoError(t, err)
	assert.Equal(t, "ws-1", req.WorksheetID)
	assert.Equal(t, "Baseline", req.SourceRowName)
	assert.Equal(t, "light", req.RowSuffix)
	assert.Equal(t, []string{"cfg-1", "cfg-2"}, req.ConfigIDs)
	assert.Equal(t, []string{"exploration"}, req.ExcludedConfigTypes)
	assert.Equal(t, []string{"DynamicLap"}, req.SimTypes)
	assert.Equal(t, "lighter car", req.Notes)

	_, err = runRowRequest(newRunRowCmd(), "ws-1", "Baseline")
	assert.Error(t, err)
}

func TestLoadSweptParameters(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "sweep.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
- path: chassis.carRunningMass.mCar
  min: 780
  max: 820.5
`), 0o600))

	jsonPath := filepath.Join(dir, "sweep.json")
	require.NoError(t, os.WriteFile(jsonPath,
		[]byte(`[{"path":"chassis.carRunningMass.mCar","min":780,"max":820.5}]`), 0o600))

	for _, path := range []string{yamlPath, jsonPath} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			raw, err := loadSweptParameters(path)
			require.NoError(t, err)
			params, err := exploration.ParseSweptParameters(raw)
			require.NoError(t, err)
			require.Len(t, params, 1)
			assert.Equal(t, "chassis.carRunningMass.mCar", params[0].Path)
			assert.Equal(t, 780.0, params[0].Min)
			assert.Equal(t, 820.5, params[0].Max)
		})
	}

	_, err := loadSweptParameters(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	badPath := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(badPath, []byte("path: [unclosed"), 0o600))
	_, err = loadSweptParameters(badPath)
	assert.Error(t, err)
}

func TestWriteResult(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeResult(&out, true, map[string]string{"study_id": "s-1"}, "ignored"))
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "s-1", decoded["study_id"])

	out.Reset()
	require.NoError(t, writeResult(&out, false, nil, "Study s-1 submitted"))
	assert.Equal(t, "Study s-1 submitted\n", out.String())
}

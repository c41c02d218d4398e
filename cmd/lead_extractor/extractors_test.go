package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testExtractorID = "6f1c2d3e-4b5a-4c7d-8e9f-0a1b2c3d4e5f"

func TestExtractorsCommand_Errors(t *testing.T) {
	badExtractor := writeTemp(t, "bad.json", `{"name": ""}`)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "list requires owner", args: []string{"extractors", "list"}, wantErr: "owner"},
		{name: "list requires database", args: []string{"extractors", "list", "--owner", "me"}, wantErr: "DATABASE_URL is required"},
		{name: "create requires file", args: []string{"extractors", "create", "--owner", "me"}, wantErr: "file"},
		{name: "create validates first", args: []string{"extractors", "create", "--owner", "me", "--file", badExtractor}, wantErr: "validation failed"},
		{name: "create requires database", args: []string{"extractors", "create", "--owner", "me", "--file", companyExtractor}, wantErr: "DATABASE_URL is required"},
		{name: "runs requires id", args: []string{"extractors", "runs"}, wantErr: "id"},
		{name: "runs rejects malformed id", args: []string{"extractors", "runs", "--id", "not-a-uuid"}, wantErr: "invalid --id"},
		{name: "runs rejects negative limit", args: []string{"extractors", "runs", "--id", testExtractorID, "--limit", "-1"}, wantErr: "--limit"},
		{name: "runs requires database", args: []string{"extractors", "runs", "--id", testExtractorID}, wantErr: "DATABASE_URL is required"},
		{name: "delete requires id", args: []string{"extractors", "delete"}, wantErr: "id"},
		{name: "delete rejects malformed id", args: []string{"extractors", "delete", "--id", "42"}, wantErr: "invalid --id"},
		{name: "delete requires database", args: []string{"extractors", "delete", "--id", testExtractorID}, wantErr: "DATABASE_URL is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			_, _, err := executeCmd(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExtractorsCommand_Help(t *testing.T) {
	isolateEnv(t)
	stdout, _, err := executeCmd(t, "extractors", "--help")
	require.NoError(t, err)
	for _, sub := range []string{"list", "create", "runs", "delete"} {
		assert.Contains(t, stdout, sub)
	}
}

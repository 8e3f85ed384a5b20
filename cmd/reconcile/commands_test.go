package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPayload(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":92704,"gateway":"Vietcombank","transferAmount":200000,"content":"IELTS PREDICTION 17691622312585779"}`), 0o644))

	payload, err := readPayload(path)
	require.NoError(t, err)
	require.NotNil(t, payload.TransferAmount)
	require.NotNil(t, payload.Content)
	assert.Equal(t, float64(200000), *payload.TransferAmount)
	assert.Equal(t, "IELTS PREDICTION 17691622312585779", *payload.Content)
	assert.Equal(t, "Vietcombank", payload.Gateway)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"transferAmount":`), 0o644))
	_, err = readPayload(bad)
	assert.Error(t, err)

	_, err = readPayload(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

package storage

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
)

// Snapshots compress extremely well (mostly repeated JSON keys), so they
// are stored gzipped. Trades are small and stored as plain JSON.

func encodeGzipJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(v); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGzipJSON(b []byte, v interface{}) error {
	gz, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return err
	}
	defer gz.Close()
	raw, err := io.ReadAll(gz)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

package saml

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"fmt"
	"io"
)

// EncodeURLParam compresses the payload with a raw, headerless DEFLATE
// stream and renders it as a percent-encoded base64 query parameter value.
func EncodeURLParam(payload []byte) (string, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return "", fmt.Errorf("creating deflate writer: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return "", fmt.Errorf("compressing payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("compressing payload: %w", err)
	}
	return base64URLEncode(buf.Bytes()), nil
}

// DecodeURLParam reverses EncodeURLParam. Zlib-wrapped streams are
// accepted as well, since some issuers keep the header.
func DecodeURLParam(value string) ([]byte, error) {
	raw, err := base64URLDecode(value)
	if err != nil {
		return nil, fmt.Errorf("decoding url param: %w", err)
	}

	if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
		defer zr.Close()
		if payload, err := io.ReadAll(zr); err == nil {
			return payload, nil
		}
	}

	fr := flate.NewReader(bytes.NewReader(raw))
	defer fr.Close()
	payload, err := io.ReadAll(fr)
	if err != nil {
		return nil, fmt.Errorf("inflating url param: %w", err)
	}
	return payload, nil
}

package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"slices"
	"strings"

	"github.com/jzx17/httpipe/pkg/params"
	"github.com/jzx17/httpipe/pkg/types"
)

// File is a multipart file part
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

// encodeBody serializes v for ct and returns the payload with the media type
// to send. []byte values are sent as they are.
func encodeBody(ct types.ContentType, v any) ([]byte, string, error) {
	if v == nil {
		return nil, string(ct), nil
	}
	if raw, ok := v.([]byte); ok {
		return raw, string(ct), nil
	}

	switch ct {
	case types.ContentTypeForm:
		values, err := formValues(v)
		if err != nil {
			return nil, "", &types.EncodeError{ContentType: ct, Cause: err}
		}
		return []byte(values.Encode()), string(ct), nil

	case types.ContentTypeMultipart:
		data, mediaType, err := encodeMultipart(v)
		if err != nil {
			return nil, "", &types.EncodeError{ContentType: ct, Cause: err}
		}
		return data, mediaType, nil

	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", &types.EncodeError{ContentType: types.ContentTypeJSON, Cause: err}
		}
		return data, string(types.ContentTypeJSON), nil
	}
}

// encodeQuery renders v as a query string for verbs without a payload
func encodeQuery(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	if s, ok := v.(string); ok {
		return strings.TrimPrefix(s, "?"), nil
	}
	values, err := formValues(v)
	if err != nil {
		return "", &types.EncodeError{ContentType: types.ContentTypeForm, Cause: err}
	}
	return values.Encode(), nil
}

func formValues(v any) (url.Values, error) {
	switch x := v.(type) {
	case url.Values:
		return x, nil
	case map[string][]string:
		return url.Values(x), nil
	case map[string]string:
		values := make(url.Values, len(x))
		for k, s := range x {
			values.Set(k, s)
		}
		return values, nil
	case map[string]any:
		values := make(url.Values, len(x))
		for k, item := range x {
			values.Set(k, params.Format(item))
		}
		return values, nil
	case string:
		return url.ParseQuery(x)
	default:
		return nil, fmt.Errorf("unsupported form value %T", v)
	}
}

func encodeMultipart(v any) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := writeParts(w, v); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// writeParts emits parts in key order so payloads are reproducible
func writeParts(w *multipart.Writer, v any) error {
	switch x := v.(type) {
	case map[string]string:
		for _, k := range sortedKeys(x) {
			if err := w.WriteField(k, x[k]); err != nil {
				return err
			}
		}
	case url.Values:
		for _, k := range sortedKeys(x) {
			for _, s := range x[k] {
				if err := w.WriteField(k, s); err != nil {
					return err
				}
			}
		}
	case map[string]any:
		for _, k := range sortedKeys(x) {
			if err := writePart(w, k, x[k]); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported multipart value %T", v)
	}
	return nil
}

func writePart(w *multipart.Writer, name string, v any) error {
	var f File
	switch x := v.(type) {
	case File:
		f = x
	case *File:
		f = *x
	default:
		return w.WriteField(name, params.Format(v))
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, name, f.Filename))
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(f.Data)
	return err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

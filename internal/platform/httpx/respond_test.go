package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type decodeTarget struct {
	Name string `json:"name"`
}

func TestDecodeJSON(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "ok", body: `{"name":"cash"}`},
		{name: "empty", body: ``, wantErr: "empty"},
		{name: "unknown field", body: `{"nom":"cash"}`, wantErr: "unknown field"},
		{name: "trailing object", body: `{"name":"a"}{"name":"b"}`, wantErr: "single JSON object"},
		{name: "too large", body: `{"name":"` + strings.Repeat("x", MaxBodyBytes) + `"}`, wantErr: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var got decodeTarget
			err := DecodeJSON(req, &got)
			switch {
			case tc.name == "too large":
				require.Error(t, err)
			case tc.wantErr != "":
				require.ErrorContains(t, err, tc.wantErr)
			default:
				require.NoError(t, err)
				require.Equal(t, "cash", got.Name)
			}
		})
	}
}

func TestAttachment(t *testing.T) {
	rec := httptest.NewRecorder()
	Attachment(rec, ContentTypeXLSX, "cost-sheet.xlsx", []byte("PK"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, ContentTypeXLSX, rec.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename="cost-sheet.xlsx"`, rec.Header().Get("Content-Disposition"))
	require.Equal(t, "2", rec.Header().Get("Content-Length"))
}

package vision

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(srv.URL, "vision-key", WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func assertImageRequest(t *testing.T, r *http.Request) {
	t.Helper()
	require.Equal(t, http.MethodPost, r.Method)
	require.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
	require.Equal(t, "vision-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	require.Equal(t, pngBytes, body)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("", "key")
	require.Error(t, err)
	require.Contains(t, err.Error(), "endpoint")

	_, err = NewClient("https://vision.example.com", " ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "subscription key")

	c, err := NewClient("https://vision.example.com", "key")
	require.NoError(t, err)
	require.Equal(t, "https://vision.example.com/", c.endpoint)
}

func TestAnalyze_DefaultFeatures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/vision/v3.2/analyze", r.URL.Path)
		require.Equal(t, "Categories,Description,Color", r.URL.Query().Get("visualFeatures"))
		assertImageRequest(t, r)
		_, _ = w.Write([]byte(`{
			"categories":[{"name":"outdoor_","score":0.9}],
			"description":{"tags":["beach","sea"],"captions":[{"text":"a sandy beach","confidence":0.87}]},
			"color":{"dominantColorForeground":"Blue","dominantColors":["Blue","White"],"isBwImg":false},
			"requestId":"req-1"
		}`))
	}))
	defer srv.Close()

	out, err := newTestClient(t, srv).Analyze(context.Background(), pngBytes)
	require.NoError(t, err)
	require.Equal(t, "outdoor_", out.Categories[0].Name)
	require.Equal(t, "a sandy beach", out.Description.Captions[0].Text)
	require.Equal(t, []string{"beach", "sea"}, out.Description.Tags)
	require.Equal(t, "Blue", out.Color.DominantColorForeground)
	require.Equal(t, "req-1", out.RequestID)
}

func TestAnalyze_CustomFeatures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Tags,Faces", r.URL.Query().Get("visualFeatures"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Analyze(context.Background(), pngBytes, "Tags", "Faces")
	require.NoError(t, err)
}

func TestDetect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/vision/v3.2/detect", r.URL.Path)
		require.Empty(t, r.URL.RawQuery)
		assertImageRequest(t, r)
		_, _ = w.Write([]byte(`{"objects":[{"rectangle":{"x":10,"y":20,"w":30,"h":40},"object":"dog","confidence":0.91}]}`))
	}))
	defer srv.Close()

	out, err := newTestClient(t, srv).Detect(context.Background(), pngBytes)
	require.NoError(t, err)
	require.Equal(t, []DetectedObject{{Rectangle: Rectangle{X: 10, Y: 20, W: 30, H: 40}, Object: "dog", Confidence: 0.91}}, out.Objects)
}

func TestOCR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/vision/v3.2/ocr", r.URL.Path)
		assertImageRequest(t, r)
		_, _ = w.Write([]byte(`{"language":"en","regions":[
			{"lines":[{"words":[{"text":"Hello"},{"text":"world"}]},{"words":[{"text":"second"}]}]},
			{"lines":[{"words":[{"text":"third"},{"text":"line"}]}]}
		]}`))
	}))
	defer srv.Close()

	out, err := newTestClient(t, srv).OCR(context.Background(), pngBytes)
	require.NoError(t, err)
	require.Equal(t, "en", out.Language)
	require.Equal(t, "Hello world\nsecond\nthird line", out.Text())
}

func TestOCRResult_TextEmpty(t *testing.T) {
	require.Equal(t, "", OCRResult{}.Text())
}

func TestPost_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"401"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Detect(context.Background(), pngBytes)
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusUnauthorized, statusErr.HTTPStatusCode())
	require.Contains(t, err.Error(), "unexpected status 401")
}

func TestPost_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-json`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).OCR(context.Background(), pngBytes)
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode ocr response")
}

func TestPost_EmptyImage(t *testing.T) {
	c, err := NewClient("https://vision.example.com", "key")
	require.NoError(t, err)
	_, err = c.Analyze(context.Background(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "image must not be empty")
}

package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// contractResponseWriter holds the status and body back from the client until
// the response has been checked against the contract.
type contractResponseWriter struct {
	gin.ResponseWriter
	body   bytes.Buffer
	status int
	wrote  bool
}

func newContractResponseWriter(w gin.ResponseWriter) *contractResponseWriter {
	return &contractResponseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *contractResponseWriter) WriteHeader(code int) {
	if w.wrote {
		return
	}
	w.status = code
	w.wrote = true
}

func (w *contractResponseWriter) WriteHeaderNow() { w.wrote = true }

func (w *contractResponseWriter) Write(data []byte) (int, error) {
	w.wrote = true
	return w.body.Write(data)
}

func (w *contractResponseWriter) WriteString(s string) (int, error) {
	w.wrote = true
	return w.body.WriteString(s)
}

func (w *contractResponseWriter) Status() int   { return w.status }
func (w *contractResponseWriter) Size() int     { return w.body.Len() }
func (w *contractResponseWriter) Written() bool { return w.wrote }

func (w *contractResponseWriter) replaceJSON(status int, payload any) {
	w.status = status
	w.wrote = true
	w.body.Reset()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(`{"code":"` + codeResponseInvalid + `","message":"` + responseInvalidMessage + `"}`)
	}
	w.body.Write(data)
}

func (w *contractResponseWriter) flush() error {
	w.ResponseWriter.WriteHeader(w.status)
	if w.body.Len() == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.body.Bytes())
	return err
}

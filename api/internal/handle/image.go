package handle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"alpd/api/internal/session"
	"alpd/api/internal/util"
)

type SelectImageRequest struct {
	Image string `json:"image"` // base64 or data URL
	MIME  string `json:"mime,omitempty"`
}

// SelectImage accepts a multipart upload (field "image") or a JSON body.
func (h *Handle) SelectImage(w http.ResponseWriter, r *http.Request) {
	if !postOnly(w, r) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	var (
		dataURL string
		err     error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		dataURL, err = h.readMultipart(r)
	} else {
		dataURL, err = readJSONImage(r)
	}
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			writeError(w, http.StatusRequestEntityTooLarge, "image too large")
		case errors.Is(err, errUnsupportedType):
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	sess := h.sessionFor(w, r)
	if err := sess.SelectImage(dataURL); err != nil {
		if errors.Is(err, session.ErrBusy) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

var errUnsupportedType = errors.New("file is not an image")

func (h *Handle) readMultipart(r *http.Request) (string, error) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return "", err
	}
	f, hdr, err := r.FormFile("image")
	if err != nil {
		return "", errors.New("missing form field \"image\"")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", util.ErrEmptyImage
	}
	mime := util.PickMIME(hdr.Header.Get("Content-Type"), util.MIMEFromFilename(hdr.Filename), data)
	if !util.IsImageMIME(mime) {
		return "", errUnsupportedType
	}
	return util.EncodeDataURL(mime, data), nil
}

func readJSONImage(r *http.Request) (string, error) {
	var req SelectImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", fmt.Errorf("bad json: %w", err)
	}
	img, hint, err := util.DecodeBase64MaybeDataURL(req.Image)
	if err != nil {
		return "", fmt.Errorf("bad image: %w", err)
	}
	mime := util.PickMIME(req.MIME, hint, img)
	if !util.IsImageMIME(mime) {
		return "", errUnsupportedType
	}
	return util.EncodeDataURL(mime, img), nil
}

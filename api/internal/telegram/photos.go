package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"alpd/api/internal/session"
	"alpd/api/internal/util"
)

const (
	busyText     = "Still scanning the previous image…"
	scanningText = "Scanning image…"
	maxPhotoSize = 20 << 20
	// longest side sent to the model; image documents can be full camera resolution
	maxImageDim = 2048
)

// acceptImage downloads a photo or image document, makes it the chat's current
// image and analyzes it. A photo arriving while another is analyzed is dropped
// with busyText.
func (r *Router) acceptImage(ctx context.Context, cid int64, fileID, mimeHint string) {
	sess := r.session(cid)
	if sess.State() == session.StateInFlight {
		r.send(cid, busyText)
		return
	}

	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.send(cid, "Could not get the file: "+err.Error())
		return
	}
	data, err := download(ctx, url)
	if err != nil {
		r.send(cid, "Could not download the photo: "+err.Error())
		return
	}
	mime := util.PickMIME(mimeHint, "", data)
	if small, smallMIME, resized, err := util.FitLongestSide(data, mime, maxImageDim); err != nil {
		log.Printf("telegram: resize for chat %d: %v", cid, err)
	} else if resized {
		data, mime = small, smallMIME
	}

	// album photos arrive concurrently; SubmitImage lets exactly one of them in
	if sess.State() == session.StateInFlight {
		r.send(cid, busyText)
		return
	}
	r.send(cid, scanningText)
	res, err := sess.SubmitImage(ctx, util.EncodeDataURL(mime, data))
	if err != nil {
		if errors.Is(err, session.ErrBusy) {
			r.send(cid, busyText)
			return
		}
		r.SendError(cid, err)
		return
	}
	r.sendMarkdown(cid, formatResult(res))
}

// sendHistoryPhoto re-sends a stored image with its result as the caption.
func (r *Router) sendHistoryPhoto(cid int64, dataURL, caption string) error {
	data, mime, err := util.DecodeBase64MaybeDataURL(dataURL)
	if err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(cid, tgbotapi.FileBytes{Name: "plate" + extFor(mime), Bytes: data})
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeMarkdown
	_, err = r.Bot.Send(photo)
	return err
}

func extFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ".jpg"
}

func download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxPhotoSize {
		return nil, fmt.Errorf("file larger than %d bytes", maxPhotoSize)
	}
	if len(data) == 0 {
		return nil, util.ErrEmptyImage
	}
	return data, nil
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}

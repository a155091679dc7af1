package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"nutrisnap/api/internal/logx"
	"nutrisnap/api/internal/nutrition"
	"nutrisnap/api/internal/util"
)

// maxDownload matches the Bot API file download limit.
const maxDownload = 20 << 20

// acceptPhoto selects the largest size of a compressed Telegram photo.
func (r *Router) acceptPhoto(msg tgbotapi.Message) {
	cid := msg.Chat.ID
	ph := msg.Photo[len(msg.Photo)-1]

	data, err := r.fetchFile(ph.FileID)
	if err != nil {
		r.SendError(cid, err)
		return
	}
	img := nutrition.Image{
		Data:      data,
		Name:      fmt.Sprintf("photo_%s.jpg", ph.FileUniqueID),
		Size:      int64(len(data)),
		MediaType: util.SniffMimeHTTP(data),
	}
	r.session(cid).Ctl.SelectImage(img)
}

// acceptDocument selects an uncompressed upload. Files that do not declare an
// image type are ignored without a reply, like a file picker filter.
func (r *Router) acceptDocument(msg tgbotapi.Message) {
	cid := msg.Chat.ID
	doc := msg.Document
	mediaType := util.PickMIME(doc.MimeType, nil)
	if !nutrition.IsImage(mediaType) {
		logx.Debug().Int64("chat", cid).Str("media_type", mediaType).Msg("ignored non-image document")
		return
	}

	data, err := r.fetchFile(doc.FileID)
	if err != nil {
		r.SendError(cid, err)
		return
	}
	name := doc.FileName
	if name == "" {
		name = "upload" + extFor(mediaType)
	}
	r.session(cid).Ctl.SelectImage(nutrition.Image{
		Data:      data,
		Name:      path.Base(name),
		Size:      int64(len(data)),
		MediaType: mediaType,
	})
}

func (r *Router) fetchFile(fileID string) ([]byte, error) {
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	return download(ctx, r.httpClient(), url)
}

func download(ctx context.Context, httpc *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if len(b) > maxDownload {
		return nil, fmt.Errorf("download: file larger than %d MB", maxDownload>>20)
	}
	return b, nil
}

func extFor(mediaType string) string {
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

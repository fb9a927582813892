// Copyright 2024-2026 Aiku AI

package migrator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aiku/slack2matrix/pkg/archive"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// FileProcessor re-uploads files shared in Slack messages to the homeserver
// and builds the Matrix events announcing them.
type FileProcessor struct {
	api     MatrixAPI
	client  *http.Client
	maxSize int64
	dryRun  bool
	log     zerolog.Logger
}

// NewFileProcessor creates a file processor. maxSize is the homeserver
// upload limit, 0 for none. In dry-run mode files are not downloaded.
func NewFileProcessor(api MatrixAPI, client *http.Client, maxSize int64, dryRun bool, log zerolog.Logger) *FileProcessor {
	if client == nil {
		client = http.DefaultClient
	}
	return &FileProcessor{
		api:     api,
		client:  client,
		maxSize: maxSize,
		dryRun:  dryRun,
		log:     log.With().Str("component", "files").Logger(),
	}
}

// msgTypeFor picks the Matrix message type for a MIME type.
func msgTypeFor(mimeType string) event.MessageType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return event.MsgImage
	case strings.HasPrefix(mimeType, "video/"):
		return event.MsgVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return event.MsgAudio
	default:
		return event.MsgFile
	}
}

// Process uploads the files of msg as sender and returns one event content
// per file that should be sent. Files that cannot be migrated are logged
// and left out; oversized files become a notice.
func (p *FileProcessor) Process(ctx context.Context, msg archive.Message, sender id.UserID) []*event.MessageEventContent {
	if len(msg.Files) == 0 || msg.Subtype == subtypeThreadBroadcast || msg.Subtype == "file_comment" {
		return nil
	}
	var contents []*event.MessageEventContent
	for _, file := range msg.Files {
		log := p.log.With().Str("file_id", file.ID).Str("file_name", file.Name).Logger()
		url := file.URLPrivateDownload
		if url == "" {
			url = file.URLPrivate
		}
		if url == "" || file.Mode == "tombstone" || file.Mode == "hidden_by_limit" {
			log.Debug().Str("mode", file.Mode).Msg("Skipping file without download URL")
			FilesUploaded.WithLabelValues("skipped").Inc()
			continue
		}
		if p.maxSize > 0 && file.Size > p.maxSize {
			log.Warn().
				Str("size", humanize.IBytes(uint64(file.Size))).
				Str("max_size", humanize.IBytes(uint64(p.maxSize))).
				Msg("File exceeds homeserver upload limit")
			FilesUploaded.WithLabelValues("too_large").Inc()
			contents = append(contents, &event.MessageEventContent{
				MsgType: event.MsgNotice,
				Body:    fmt.Sprintf("File %s (%s) was too large to migrate", file.Name, humanize.IBytes(uint64(file.Size))),
			})
			continue
		}

		var data []byte
		if !p.dryRun {
			var err error
			data, err = p.download(ctx, url)
			if err != nil {
				log.Err(err).Msg("Failed to download file")
				FilesUploaded.WithLabelValues("failed").Inc()
				continue
			}
		}
		name := file.Name
		if name == "" {
			name = file.Title
		}
		uri, err := p.api.UploadMedia(ctx, sender, data, name, file.Mimetype)
		if err != nil {
			LogRemoteError(log.Warn(), err).Msg("Failed to upload file")
			FilesUploaded.WithLabelValues("failed").Inc()
			continue
		}
		log.Debug().Str("size", humanize.IBytes(uint64(len(data)))).Msg("Uploaded file")
		FilesUploaded.WithLabelValues("uploaded").Inc()
		contents = append(contents, &event.MessageEventContent{
			MsgType: msgTypeFor(file.Mimetype),
			Body:    name,
			URL:     uri,
			Info: &event.FileInfo{
				MimeType: file.Mimetype,
				Size:     int(file.Size),
			},
		})
	}
	return contents
}

func (p *FileProcessor) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	var body io.Reader = resp.Body
	if p.maxSize > 0 {
		body = io.LimitReader(resp.Body, p.maxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if p.maxSize > 0 && int64(len(data)) > p.maxSize {
		return nil, fmt.Errorf("file is larger than %s", humanize.IBytes(uint64(p.maxSize)))
	}
	return data, nil
}

package client

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/gophchat/internal/filex"
	"github.com/dmitrijs2005/gophchat/internal/netx"
	"github.com/dmitrijs2005/gophchat/internal/server/models"

	gs "github.com/dmitrijs2005/gophchat/internal/server/grpc"
)

// MaxUploadBytes caps what the client is willing to push to object storage.
const MaxUploadBytes = 25 << 20

// Upload presigns a PUT for the file at path, uploads it and returns the
// object URL to be sent as the content of a file or audio message.
func (p *Pull) Upload(ctx context.Context, kind models.MessageType, path string) (string, error) {
	data, err := filex.ReadLimited(path, MaxUploadBytes)
	if err != nil {
		return "", err
	}

	resp, err := p.api.PresignUpload(ctx, &gs.PresignUploadRequest{Kind: kind, Filename: filepath.Base(path)})
	if err != nil {
		return "", mapError(err)
	}
	if resp.Ticket == nil {
		return "", fmt.Errorf("presign: empty ticket")
	}

	if err := netx.UploadToPresignedURL(ctx, resp.Ticket.UploadURL, filex.ContentType(path), data); err != nil {
		return "", err
	}
	return resp.Ticket.ObjectURL, nil
}

package commands

import (
	"context"
	"fmt"

	"github.com/invisible-tech/xdr-responder/internal/markdown"
	"github.com/invisible-tech/xdr-responder/internal/outputs"
	"github.com/invisible-tech/xdr-responder/pkg/xdr"
)

type hashListInput struct {
	HashList []string `arg:"hash_list" validate:"required,dive,len=64,hexadecimal"`
	Comment  string   `arg:"comment"`
}

func blacklistFiles(ctx context.Context, c *xdr.Client, args Args) (*Result, error) {
	return hashExceptions(ctx, c, args, xdr.Blocklist, outputs.BlocklistHash, "Blacklist Files")
}

func whitelistFiles(ctx context.Context, c *xdr.Client, args Args) (*Result, error) {
	return hashExceptions(ctx, c, args, xdr.Allowlist, outputs.AllowlistHash, "Whitelist Files")
}

func hashExceptions(ctx context.Context, c *xdr.Client, args Args, list string, kind outputs.Kind, title string) (*Result, error) {
	var in hashListInput
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	hashes := dedupe(in.HashList)
	raw, err := c.AddHashExceptions(ctx, list, hashes, in.Comment)
	if err != nil {
		return nil, err
	}
	return &Result{
		Readable: markdown.List(title, "fileHash", hashes),
		Outputs:  outputs.New(kind, hashes),
		Raw:      raw,
	}, nil
}

type quarantineInput struct {
	EndpointIDs []string `arg:"endpoint_id_list" validate:"required"`
	FilePath    string   `arg:"file_path" validate:"required"`
	FileHash    string   `arg:"file_hash" validate:"required"`
}

func quarantineFiles(ctx context.Context, c *xdr.Client, args Args) (*Result, error) {
	var in quarantineInput
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	ids := dedupe(in.EndpointIDs)
	reply, err := c.QuarantineFiles(ctx, ids, in.FilePath, in.FileHash)
	if err != nil {
		return nil, err
	}
	action := map[string]interface{}{
		"actionId":       reply.ActionID,
		"filePath":       in.FilePath,
		"fileHash":       in.FileHash,
		"endpointIdList": ids,
	}
	return &Result{
		Readable: markdown.KeyValue("Quarantine files", action, []string{"actionId", "filePath", "fileHash", "endpointIdList"}),
		Outputs:  outputs.New(outputs.QuarantineAction, action),
		Raw:      reply,
	}, nil
}

type quarantineStatusInput struct {
	EndpointID string `arg:"endpoint_id" validate:"required"`
	FilePath   string `arg:"file_path" validate:"required"`
	FileHash   string `arg:"file_hash" validate:"required"`
}

func getQuarantineStatus(ctx context.Context, c *xdr.Client, args Args) (*Result, error) {
	var in quarantineStatusInput
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	st, err := c.GetQuarantineStatus(ctx, in.EndpointID, in.FilePath, in.FileHash)
	if err != nil {
		return nil, err
	}
	status := map[string]interface{}{
		"status":     st.Status,
		"endpointId": st.EndpointID,
		"fileHash":   st.FileHash,
		"filePath":   st.FilePath,
	}
	return &Result{
		Readable: markdown.KeyValue("Quarantine files status", status, []string{"status", "endpointId", "fileHash", "filePath"}),
		Outputs:  outputs.New(outputs.QuarantineStatus, status),
		Raw:      st,
	}, nil
}

type restoreFileInput struct {
	FileHash   string `arg:"file_hash" validate:"required"`
	EndpointID string `arg:"endpoint_id"`
}

func restoreFile(ctx context.Context, c *xdr.Client, args Args) (*Result, error) {
	var in restoreFileInput
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	reply, err := c.RestoreFile(ctx, in.FileHash, in.EndpointID)
	if err != nil {
		return nil, err
	}
	return &Result{
		Readable: markdown.KeyValue(fmt.Sprintf("Restore file %s", in.FileHash),
			map[string]interface{}{"Action Id": reply.ActionID}, nil),
		Outputs: outputs.New(outputs.RestoredFile, reply.ActionID),
		Raw:     reply,
	}, nil
}

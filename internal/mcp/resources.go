package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/zeno-search/zeno/internal/store"
)

const (
	documentsURI = "zeno://documents"
	// recentDocuments caps the documents resource.
	recentDocuments = 100
)

// DocumentsOutput is the JSON body of the documents resource.
type DocumentsOutput struct {
	Documents []store.Record `json:"documents"`
}

// registerResources registers the recent-documents resource.
func (s *Server) registerResources() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "documents",
			URI:         documentsURI,
			Description: "Most recently indexed documents, newest first",
			MIMEType:    "application/json",
		},
		s.handleDocumentsResource,
	)
}

func (s *Server) handleDocumentsResource(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	recs, err := s.svc.List(ctx, recentDocuments)
	if err != nil {
		return nil, MapError(err)
	}
	if recs == nil {
		recs = []store.Record{}
	}

	data, err := json.Marshal(DocumentsOutput{Documents: recs})
	if err != nil {
		return nil, MapError(err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      documentsURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}

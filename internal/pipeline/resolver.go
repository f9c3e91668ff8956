package pipeline

import (
	"context"
	"fmt"

	"github.com/querychat/querychat/internal/chat"
	"github.com/querychat/querychat/internal/datasource"
	"github.com/querychat/querychat/internal/datasource/filesource"
	"github.com/querychat/querychat/internal/prompt"
	"github.com/querychat/querychat/internal/storage"
)

// Binding is a conversation's resolved data source for one message. Source is
// nil for unbound conversations. Schema is set when it is already known from
// the stored record; otherwise the pipeline asks the source, through the
// schema cache.
type Binding struct {
	Mode     prompt.Mode
	SourceID string
	FileName string
	Sample   string
	Schema   string
	Source   datasource.Source
}

func (b Binding) close() {
	if b.Source != nil {
		_ = b.Source.Close()
	}
}

// SourceResolver turns a conversation's stored binding into a live adapter.
type SourceResolver interface {
	Resolve(ctx context.Context, conv chat.Conversation) (Binding, error)
}

// StoreResolver resolves bindings from the application store: live database
// connections are opened per message, datasets are served from their
// materialized object-store file.
type StoreResolver struct {
	Store   chat.Store
	Objects storage.ObjectStore
}

func (r *StoreResolver) Resolve(ctx context.Context, conv chat.Conversation) (Binding, error) {
	switch conv.SourceType() {
	case chat.SourceConnection:
		conn, err := r.Store.GetConnection(ctx, conv.OwnerID, *conv.ConnectionID)
		if err != nil {
			return Binding{}, err
		}
		source, err := datasource.OpenLive(ctx, conn.Engine, conn.DSN)
		if err != nil {
			return Binding{}, fmt.Errorf("open connection %s: %w", conn.ID, err)
		}
		return Binding{Mode: prompt.ModeQuery, SourceID: conn.ID, Source: source}, nil

	case chat.SourceDataset:
		ds, err := r.Store.GetDataset(ctx, conv.OwnerID, *conv.DatasetID)
		if err != nil {
			return Binding{}, err
		}
		source, err := filesource.New(r.Objects, ds)
		if err != nil {
			return Binding{}, fmt.Errorf("open dataset %s: %w", ds.ID, err)
		}
		return Binding{
			Mode:     prompt.ModeTabular,
			SourceID: ds.ID,
			FileName: ds.FileName,
			Sample:   string(ds.SampleJSON),
			Schema:   ds.SchemaText,
			Source:   source,
		}, nil

	default:
		return Binding{Mode: prompt.ModeChat}, nil
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/alien2112/safelines-sub000/internal/content"
	"github.com/alien2112/safelines-sub000/internal/content/service"
	"github.com/alien2112/safelines-sub000/pkg/logger"
)

// seedFile is keyed by collection name; every entry is saved as-is, so
// entries carrying an "id" keep it.
type seedFile map[string][]map[string]interface{}

type summary struct {
	Created int
	Updated int
}

func seed(ctx context.Context, svc *service.Service, r io.Reader, dryRun bool) (map[string]summary, error) {
	var file seedFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	// validate every collection name before writing anything
	for name := range file {
		if _, err := content.Lookup(name); err != nil {
			return nil, fmt.Errorf("seed file: %w", err)
		}
	}

	out := map[string]summary{}
	for _, name := range content.Names() {
		entries, ok := file[name]
		if !ok {
			continue
		}
		col, _ := content.Lookup(name)
		var s summary
		for i, entry := range entries {
			if dryRun {
				logger.Infof("[dry-run] %s[%d] id=%v", name, i, entry["id"])
				continue
			}
			res, err := svc.Save(ctx, col, entry)
			if err != nil {
				return out, fmt.Errorf("%s[%d]: %w", name, i, err)
			}
			if res.Created {
				s.Created++
			} else {
				s.Updated++
			}
			logger.Debugf("seeded %s/%s created=%v", name, res.ID, res.Created)
		}
		out[name] = s
	}
	return out, nil
}

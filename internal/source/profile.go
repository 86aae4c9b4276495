package source

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campus-locator/internal/fetcher"
	"github.com/sells-group/campus-locator/internal/model"
)

var profileKnownColumns = map[string]bool{
	ColEntity:     true,
	"card_id":     true,
	"device_hash": true,
	"face_id":     true,
	"name":        true,
}

// LoadProfiles reads the entity profile table from dir. found is false when
// no profile file exists, which is not an error.
func LoadProfiles(ctx context.Context, dir string) (profiles []model.Profile, found bool, err error) {
	path, ok := FindFile(dir, ProfileFileNames)
	if !ok {
		return nil, false, nil
	}

	tbl, err := fetcher.ReadTable(ctx, path)
	if err != nil {
		return nil, true, eris.Wrap(err, "source: read profiles")
	}
	if !tbl.Has(ColEntity) {
		return nil, true, eris.Errorf("source: profile file %s has no %s column", filepath.Base(path), ColEntity)
	}

	skipped := 0
	for i := range tbl.Rows {
		p := model.Profile{
			EntityID:   tbl.Value(i, ColEntity),
			CardID:     tbl.Value(i, "card_id"),
			DeviceHash: tbl.Value(i, "device_hash"),
			FaceID:     tbl.Value(i, "face_id"),
			Name:       tbl.Value(i, "name"),
		}
		if p.EntityID == "" {
			skipped++
			continue
		}
		for _, col := range tbl.Header {
			if profileKnownColumns[col] || col == "" {
				continue
			}
			if v := tbl.Value(i, col); v != "" {
				if p.Extra == nil {
					p.Extra = make(map[string]string)
				}
				p.Extra[col] = v
			}
		}
		profiles = append(profiles, p)
	}

	zap.L().Info("source: loaded profiles",
		zap.String("file", filepath.Base(path)),
		zap.Int("profiles", len(profiles)),
		zap.Int("skipped", skipped),
	)
	return profiles, true, nil
}

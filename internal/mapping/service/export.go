package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"svs-mapping/internal/mapping/model"
)

// Export собирает выгрузку: все активные продукты с действующим кодом СВС.
func (s *Service) Export(ctx context.Context, orgID *int64) (model.ExportDocument, error) {
	rows, err := s.currentMappings(ctx, orgID)
	if err != nil {
		return model.ExportDocument{}, err
	}
	doc := model.ExportDocument{
		ExportDate:     s.now().UTC(),
		OrganizationID: orgID,
		TotalMappings:  len(rows),
		Mappings:       rows,
	}
	for _, r := range rows {
		if r.SvsCode != "" {
			doc.MappedCount++
		} else {
			doc.UnmappedCount++
		}
	}
	return doc, nil
}

// WriteExport пишет выгрузку с отступами, без экранирования кириллицы и спецсимволов.
func WriteExport(w io.Writer, doc model.ExportDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}

// ExportFileName: svs_mappings_org_7_20251030.json / svs_mappings_global_20251030.json
func ExportFileName(orgID *int64, at time.Time) string {
	if orgID != nil {
		return fmt.Sprintf("svs_mappings_org_%d_%s.json", *orgID, at.Format("20060102"))
	}
	return fmt.Sprintf("svs_mappings_global_%s.json", at.Format("20060102"))
}

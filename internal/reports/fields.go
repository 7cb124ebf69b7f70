package reports

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KevinKickass/EquipTrack/internal/types"
)

const timestampLayout = "02/01/2006 15:04"

type field struct {
	label string
	value func(r *types.ProcessRecord) string
}

// Field keys keep the names used by the existing report definitions.
var fieldCatalogue = map[string]field{
	"id":             {"ID", func(r *types.ProcessRecord) string { return strconv.FormatInt(r.ID, 10) }},
	"equipamento":    {"Equipamento", func(r *types.ProcessRecord) string { return r.EquipmentName }},
	"equipamento_id": {"ID Equipamento", func(r *types.ProcessRecord) string { return strconv.FormatInt(r.EquipmentID, 10) }},
	"tipo":           {"Tipo", func(r *types.ProcessRecord) string { return kindLabel(r.Kind) }},
	"produto":        {"Produto", func(r *types.ProcessRecord) string { return r.Product }},
	"ordem_producao": {"Ordem de Produção", func(r *types.ProcessRecord) string { return r.WorkOrder }},
	"responsavel":    {"Responsável", func(r *types.ProcessRecord) string { return r.Responsible }},
	"data_finalizacao": {"Data Finalização", func(r *types.ProcessRecord) string {
		return r.FinalizedAt.Format(timestampLayout)
	}},
	"status_qualidade": {"Status Qualidade", func(r *types.ProcessRecord) string {
		return strings.ToUpper(string(r.Quality))
	}},
	"data_analise": {"Data Análise", func(r *types.ProcessRecord) string {
		if r.AnalyzedAt == nil {
			return ""
		}
		return r.AnalyzedAt.Format(timestampLayout)
	}},
	"analisado_por": {"Analisado Por", func(r *types.ProcessRecord) string { return r.AnalyzedBy }},
}

// DefaultFields is used when a definition lists no fields.
var DefaultFields = []string{
	"equipamento", "produto", "ordem_producao", "responsavel", "data_finalizacao", "status_qualidade",
}

// Fields returns the known field keys with their labels.
func Fields() map[string]string {
	out := make(map[string]string, len(fieldCatalogue))
	for k, f := range fieldCatalogue {
		out[k] = f.label
	}
	return out
}

func validateFields(keys []string) error {
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if _, ok := fieldCatalogue[k]; !ok {
			return fmt.Errorf("unknown field %q: %w", k, types.ErrValidation)
		}
		if seen[k] {
			return fmt.Errorf("field %q listed twice: %w", k, types.ErrValidation)
		}
		seen[k] = true
	}
	return nil
}

func kindLabel(k types.RecordKind) string {
	switch k {
	case types.RecordCleaning:
		return "Higienização"
	default:
		return "Processo"
	}
}

// Table is the projection of history records through a definition's fields.
type Table struct {
	Labels []string
	Rows   [][]string
}

// Project maps each record to one row of cell values in field order.
func Project(keys []string, records []*types.ProcessRecord) (*Table, error) {
	if len(keys) == 0 {
		keys = DefaultFields
	}
	if err := validateFields(keys); err != nil {
		return nil, err
	}

	t := &Table{Labels: make([]string, len(keys)), Rows: make([][]string, 0, len(records))}
	for i, k := range keys {
		t.Labels[i] = fieldCatalogue[k].label
	}
	for _, r := range records {
		row := make([]string, len(keys))
		for i, k := range keys {
			row[i] = fieldCatalogue[k].value(r)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

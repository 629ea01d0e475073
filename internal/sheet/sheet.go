// Package sheet decodes the row objects returned by the remote
// spreadsheet service. Column headers are typed by hand and drift over
// time, so every header is mapped to a canonical field name first and
// unknown columns are ignored rather than rejected.
package sheet

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"leakdesk/internal/models"
)

// Row is one decoded JSON object from a ?sheet= read.
type Row map[string]any

// NormalizeHeader maps a raw column header to its canonical field name.
// Rules are ordered; the first match wins. Unmatched headers come back
// trimmed and lowercased.
func NormalizeHeader(h string) string {
	low := strings.ToLower(strings.TrimSpace(h))
	has := func(s string) bool { return strings.Contains(low, s) }

	switch {
	case low == "id" || has("id (") || has("id tiket"):
		return "id"
	case has("tokoid") || (has("toko") && has("id")):
		return "tokoId"
	case has("tokoname") || has("nama toko"):
		return "tokoName"
	case has("status"):
		return "status"
	case has("planneddate") || has("rencana"):
		return "plannedDate"
	case has("targetdate") || has("target"):
		return "targetDate"
	case has("completiondate") || has("tgl selesai"):
		return "completionDate"
	case has("updated") || has("diperbarui"):
		return "updatedAt"
	case low == "date" || low == "tanggal" || has("tgl lapor"):
		return "date"
	case has("indicator") || has("indikator"):
		return "indicator"
	case has("risklevel") || has("resiko") || has("risiko"):
		return "riskLevel"
	case has("businessimpact") || has("dampak bisnis"):
		return "businessImpact"
	case has("recommendation") || has("rekomendasi"):
		return "recommendation"
	case has("urgency") || has("urgensi"):
		return "urgency"
	case has("location") || has("lokasi"):
		return "location"
	case has("description") || has("deskripsi") || has("keterangan"):
		return "description"
	case has("photourls") || has("foto drive"):
		return "photoUrls"
	case has("department") || has("dept"):
		return "department"
	case has("pic"):
		return "pic"
	case has("beritaacara") || has("berita acara") || has("work report"):
		return "beritaAcara"
	case has("password"):
		return "password"
	case has("role"):
		return "role"
	case has("amname"):
		return "amName"
	case has("amemail") || (has("am") && has("email")):
		return "amEmail"
	case has("email"):
		return "email"
	case has("name") || has("nama"):
		return "name"
	}
	return low
}

// canonical folds a row's keys through NormalizeHeader and renders every
// scalar value as a string. photoUrls keeps its raw value for DecodePhotos.
func canonical(r Row) (map[string]string, any) {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	// Sorted so that two columns claiming the same field resolve the same
	// way on every poll.
	sort.Strings(keys)

	out := make(map[string]string, len(r))
	var photos any
	for _, k := range keys {
		key := NormalizeHeader(k)
		if key == "photoUrls" {
			if photos == nil {
				photos = r[k]
			}
			continue
		}
		if _, dup := out[key]; dup {
			continue
		}
		out[key] = scalar(r[k])
	}
	return out, photos
}

func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// DecodePhotos accepts every encoding the photo column has been seen in:
// a JSON array, a JSON-encoded array inside a string, a single link, or
// the sentinel.
func DecodePhotos(v any) []string {
	out := []string{}
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			if s := scalar(item); s != "" && s != models.Unset {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range x {
			if s = strings.TrimSpace(s); s != "" && s != models.Unset {
				out = append(out, s)
			}
		}
	case string:
		s := strings.TrimSpace(x)
		if strings.HasPrefix(s, "[") {
			var items []string
			if err := json.Unmarshal([]byte(s), &items); err == nil {
				return DecodePhotos(items)
			}
		}
		if models.IsSet(s) {
			out = append(out, s)
		}
	}
	return out
}

// Tickets decodes a ?sheet=Ticket body. Rows without an id are skipped.
func Tickets(body []byte) ([]models.Ticket, error) {
	rows, err := decodeRows(body)
	if err != nil {
		return nil, err
	}
	out := make([]models.Ticket, 0, len(rows))
	for _, r := range rows {
		f, photos := canonical(r)
		if !models.IsSet(f["id"]) {
			continue
		}
		t := models.Ticket{
			ID:             f["id"],
			StoreID:        f["tokoId"],
			StoreName:      f["tokoName"],
			Date:           f["date"],
			Location:       f["location"],
			Description:    f["description"],
			Indicator:      f["indicator"],
			RiskLevel:      f["riskLevel"],
			BusinessImpact: f["businessImpact"],
			Recommendation: f["recommendation"],
			Urgency:        models.Urgency(f["urgency"]),
			Status:         models.Status(f["status"]),
			PhotoURLs:      DecodePhotos(photos),
			Department:     f["department"],
			PIC:            f["pic"],
			PlannedDate:    f["plannedDate"],
			TargetDate:     f["targetDate"],
			CompletionDate: f["completionDate"],
			ClosureNote:    f["beritaAcara"],
			UpdatedAt:      f["updatedAt"],
		}
		t.Normalize()
		out = append(out, t)
	}
	return out, nil
}

// Accounts decodes a ?sheet=Users body.
func Accounts(body []byte) ([]models.Account, error) {
	rows, err := decodeRows(body)
	if err != nil {
		return nil, err
	}
	out := make([]models.Account, 0, len(rows))
	for _, r := range rows {
		f, _ := canonical(r)
		id := f["id"]
		if !models.IsSet(id) {
			continue
		}
		name := f["name"]
		if !models.IsSet(name) {
			name = id
		}
		out = append(out, models.Account{
			ID:              id,
			Name:            name,
			Role:            models.ParseRole(f["role"]),
			Credential:      f["password"],
			Email:           address(f["email"]),
			EscalationEmail: address(f["amEmail"]),
		})
	}
	return out, nil
}

func address(v string) string {
	if !strings.Contains(v, "@") {
		return ""
	}
	return v
}

func decodeRows(body []byte) ([]Row, error) {
	var rows []Row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode sheet rows: %w", err)
	}
	return rows, nil
}

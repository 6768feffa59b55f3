package models

// DocType identifies what kind of collateral a document is. Values mirror
// the folder/file conventions of the knowledge bucket.
type DocType string

const (
	DocTypeSalesSheet     DocType = "sales_sheet"
	DocTypeDataSheet      DocType = "data_sheet"
	DocTypeInstallManual  DocType = "install_manual"
	DocTypeInstallVideo   DocType = "install_video"
	DocTypeCADDWG         DocType = "cad_dwg"
	DocTypeCADStep        DocType = "cad_step"
	DocTypeProductDrawing DocType = "product_drawing"
	DocTypeProductImage   DocType = "product_image"
	DocTypeRender         DocType = "render"
	DocTypeAsset          DocType = "asset"
	DocTypeUnknown        DocType = "unknown"
)

// RecommendedDocument describes one document surfaced for a turn. Path is
// the unique key within the knowledge bucket; URL is a time-limited signed
// link and may be absent.
type RecommendedDocument struct {
	Title   string  `json:"title"`
	DocType DocType `json:"doc_type"`
	Path    string  `json:"path"`
	URL     *string `json:"url"`
	Excerpt string  `json:"excerpt,omitempty"`
}

// SiteSnippet is lightweight grounding material pulled alongside documents.
type SiteSnippet struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Excerpt string `json:"excerpt"`
}

// MergeDocsByPath merges document lists keyed on Path. The first occurrence
// of a path wins and relative order is preserved; entries without a path are
// dropped.
func MergeDocsByPath(lists ...[]RecommendedDocument) []RecommendedDocument {
	out := []RecommendedDocument{}
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, d := range list {
			if d.Path == "" || seen[d.Path] {
				continue
			}
			seen[d.Path] = true
			out = append(out, d)
		}
	}
	return out
}

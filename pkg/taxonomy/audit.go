package taxonomy

import "khoomi-api-io/taxonomy/pkg/models"

type AnomalyKind string

const (
	AnomalyDanglingParent  AnomalyKind = "dangling_parent"
	AnomalyCycle           AnomalyKind = "cycle"
	AnomalyDuplicateID     AnomalyKind = "duplicate_id"
	AnomalyDuplicateSlug   AnomalyKind = "duplicate_slug"
	AnomalyInvalidTemplate AnomalyKind = "invalid_template"
)

type Anomaly struct {
	Kind       AnomalyKind `json:"kind"`
	CategoryID string      `json:"categoryId"`
	Related    []string    `json:"related,omitempty"`
	Detail     string      `json:"detail,omitempty"`
}

// AuditReport lists what reads silently heal but an admin should fix.
type AuditReport struct {
	Categories int       `json:"categories"`
	Roots      int       `json:"roots"`
	MaxDepth   int       `json:"maxDepth"`
	Anomalies  []Anomaly `json:"anomalies"`
}

func (r AuditReport) Healthy() bool {
	return len(r.Anomalies) == 0
}

// Audit inspects stored records for structural problems.
func Audit(records []models.CategoryRecord) AuditReport {
	report := AuditReport{Anomalies: []Anomaly{}}

	ids := make(map[string]bool, len(records))
	slugs := make(map[string]string, len(records))
	for _, r := range records {
		if ids[r.ID] {
			report.Anomalies = append(report.Anomalies, Anomaly{Kind: AnomalyDuplicateID, CategoryID: r.ID})
			continue
		}
		ids[r.ID] = true

		key := SlugKey(r.Slug)
		if owner, taken := slugs[key]; taken {
			report.Anomalies = append(report.Anomalies, Anomaly{
				Kind: AnomalyDuplicateSlug, CategoryID: r.ID, Related: []string{owner}, Detail: r.Slug,
			})
		} else {
			slugs[key] = r.ID
		}

		if err := r.Template.Validate(); err != nil {
			report.Anomalies = append(report.Anomalies, Anomaly{
				Kind: AnomalyInvalidTemplate, CategoryID: r.ID, Detail: err.Error(),
			})
		}
	}

	for _, r := range records {
		if r.ParentID != "" && !ids[r.ParentID] {
			report.Anomalies = append(report.Anomalies, Anomaly{
				Kind: AnomalyDanglingParent, CategoryID: r.ID, Related: []string{r.ParentID},
			})
		}
	}

	forest := NewForest(records)
	for _, root := range forest.Roots {
		if root.ParentID == "" || !ids[root.ParentID] {
			continue
		}
		// A root that has an existing parent is where a cycle was cut.
		report.Anomalies = append(report.Anomalies, Anomaly{
			Kind: AnomalyCycle, CategoryID: root.ID, Related: cycleMembers(forest, root.ID),
		})
	}

	report.Categories = forest.Len()
	report.Roots = len(forest.Roots)
	forest.Walk(func(_ *models.CategoryNode, depth int) bool {
		if depth+1 > report.MaxDepth {
			report.MaxDepth = depth + 1
		}
		return true
	})
	return report
}

func cycleMembers(f *Forest, start string) []string {
	members := []string{start}
	n, _ := f.Find(start)
	for hops := 0; hops < f.Len(); hops++ {
		parent, ok := f.Find(n.ParentID)
		if !ok || parent.ID == start {
			break
		}
		members = append(members, parent.ID)
		n = parent
	}
	return members
}

package rfq

import "time"

// PartnerType classifies a business partner.
type PartnerType string

const (
	PartnerSupplier   PartnerType = "Supplier"
	PartnerContractor PartnerType = "Contractor"
)

// ResolvePartnerType returns the effective partner type of a stored record.
// Records written before partner types existed carry no value and are suppliers.
func ResolvePartnerType(p *PartnerType) PartnerType {
	if p == nil || *p == "" {
		return PartnerSupplier
	}
	return *p
}

// PartnerTypePtr returns a pointer to p, for populating optional fields.
func PartnerTypePtr(p PartnerType) *PartnerType {
	return &p
}

// Direction is the direction of an exchange.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// Project is a numbered project folder.
type Project struct {
	ProjectNumber string    `json:"project_number" bson:"project_number"`
	Path          string    `json:"path" bson:"path"`
	LastScanned   time.Time `json:"last_scanned" bson:"last_scanned"`
}

// Supplier is a business partner of a project, supplier or contractor.
type Supplier struct {
	ProjectNumber string       `json:"project_number" bson:"project_number"`
	SupplierName  string       `json:"supplier_name" bson:"supplier_name"`
	PartnerType   *PartnerType `json:"partner_type,omitempty" bson:"partner_type,omitempty"`
	Path          string       `json:"path" bson:"path"`
	// Category is only present on records from an older schema.
	Category *string `json:"category,omitempty" bson:"category,omitempty"`
}

// EffectivePartnerType returns the partner type with the supplier default applied.
func (s Supplier) EffectivePartnerType() PartnerType {
	return ResolvePartnerType(s.PartnerType)
}

// SubmissionKey identifies one version of an exchange folder.
type SubmissionKey struct {
	ProjectNumber string
	SupplierName  string
	FolderName    string
	ContentHash   string
}

// Submission is one sent or received folder at a specific content state.
type Submission struct {
	ID            string       `json:"id" bson:"_id"`
	ProjectNumber string       `json:"project_number" bson:"project_number"`
	SupplierName  string       `json:"supplier_name" bson:"supplier_name"`
	Type          Direction    `json:"type" bson:"type"`
	FolderName    string       `json:"folder_name" bson:"folder_name"`
	FolderPath    string       `json:"folder_path" bson:"folder_path"`
	Date          time.Time    `json:"date" bson:"date"`
	ContentHash   string       `json:"content_hash" bson:"content_hash"`
	Files         []string     `json:"files" bson:"files"`
	PartnerType   *PartnerType `json:"partner_type,omitempty" bson:"partner_type,omitempty"`
	FirstSeen     time.Time    `json:"first_seen" bson:"first_seen"`
	LastChecked   *time.Time   `json:"last_checked,omitempty" bson:"last_checked,omitempty"`
}

// Key returns the versioning key of the submission.
func (s *Submission) Key() SubmissionKey {
	return SubmissionKey{
		ProjectNumber: s.ProjectNumber,
		SupplierName:  s.SupplierName,
		FolderName:    s.FolderName,
		ContentHash:   s.ContentHash,
	}
}

// EffectivePartnerType returns the partner type with the supplier default applied.
func (s Submission) EffectivePartnerType() PartnerType {
	return ResolvePartnerType(s.PartnerType)
}

// Bundle is everything extracted from one project folder. It is handed to a
// Sink as a unit.
type Bundle struct {
	Project     Project      `json:"project"`
	Suppliers   []Supplier   `json:"suppliers"`
	Submissions []Submission `json:"submissions"`
}

package query

import (
	"time"

	"rfq-tracker/internal/rfq"
)

// Row types mirror the tables written by database.SQLiteStore. The query
// layer never migrates or writes them.

type projectRow struct {
	ProjectNumber string    `gorm:"column:project_number;primaryKey"`
	Path          string    `gorm:"column:path"`
	LastScanned   time.Time `gorm:"column:last_scanned"`
}

func (projectRow) TableName() string { return "projects" }

func (r projectRow) toProject() rfq.Project {
	return rfq.Project{ProjectNumber: r.ProjectNumber, Path: r.Path, LastScanned: r.LastScanned}
}

type supplierRow struct {
	ProjectNumber string  `gorm:"column:project_number;primaryKey"`
	SupplierName  string  `gorm:"column:supplier_name;primaryKey"`
	PartnerType   *string `gorm:"column:partner_type"`
	Path          string  `gorm:"column:path"`
	Category      *string `gorm:"column:category"`
}

func (supplierRow) TableName() string { return "suppliers" }

func (r supplierRow) toSupplier() rfq.Supplier {
	return rfq.Supplier{
		ProjectNumber: r.ProjectNumber,
		SupplierName:  r.SupplierName,
		PartnerType:   partnerType(r.PartnerType),
		Path:          r.Path,
		Category:      r.Category,
	}
}

type submissionRow struct {
	ID            string     `gorm:"column:id;primaryKey"`
	ProjectNumber string     `gorm:"column:project_number"`
	SupplierName  string     `gorm:"column:supplier_name"`
	Type          string     `gorm:"column:type"`
	FolderName    string     `gorm:"column:folder_name"`
	FolderPath    string     `gorm:"column:folder_path"`
	Date          time.Time  `gorm:"column:date"`
	ContentHash   string     `gorm:"column:content_hash"`
	Files         []string   `gorm:"column:files;serializer:json"`
	PartnerType   *string    `gorm:"column:partner_type"`
	FirstSeen     time.Time  `gorm:"column:first_seen"`
	LastChecked   *time.Time `gorm:"column:last_checked"`
}

func (submissionRow) TableName() string { return "submissions" }

func (r submissionRow) toSubmission() rfq.Submission {
	return rfq.Submission{
		ID:            r.ID,
		ProjectNumber: r.ProjectNumber,
		SupplierName:  r.SupplierName,
		Type:          rfq.Direction(r.Type),
		FolderName:    r.FolderName,
		FolderPath:    r.FolderPath,
		Date:          r.Date,
		ContentHash:   r.ContentHash,
		Files:         r.Files,
		PartnerType:   partnerType(r.PartnerType),
		FirstSeen:     r.FirstSeen,
		LastChecked:   r.LastChecked,
	}
}

func partnerType(s *string) *rfq.PartnerType {
	if s == nil {
		return nil
	}
	return rfq.PartnerTypePtr(rfq.PartnerType(*s))
}

// Package query answers the read-only questions the UI asks of the crawl
// store: partner-type filtered listings, version chains and sent/received
// counts.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rfq-tracker/internal/rfq"
)

// Reader runs queries against a migrated SQLite store.
type Reader struct {
	db *gorm.DB
}

// NewReader wraps an open connection, typically database.SQLiteStore.DB().
// The connection stays owned by the caller.
func NewReader(conn *sql.DB) (*Reader, error) {
	db, err := gorm.Open(sqlite.Dialector{Conn: conn}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening query layer: %w", err)
	}
	return &Reader{db: db}, nil
}

// SubmissionFilter narrows submission queries. Zero fields do not filter.
type SubmissionFilter struct {
	ProjectNumber string
	SupplierName  string
	PartnerType   *rfq.PartnerType
	Type          rfq.Direction
	From          time.Time // inclusive
	To            time.Time // exclusive
}

func (f SubmissionFilter) apply(db *gorm.DB) *gorm.DB {
	if f.ProjectNumber != "" {
		db = db.Where("project_number = ?", f.ProjectNumber)
	}
	if f.SupplierName != "" {
		db = db.Where("supplier_name = ?", f.SupplierName)
	}
	if f.PartnerType != nil {
		db = db.Scopes(partnerTypeIs(*f.PartnerType))
	}
	if f.Type != "" {
		db = db.Where("type = ?", string(f.Type))
	}
	if !f.From.IsZero() {
		db = db.Where("date >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		db = db.Where("date < ?", f.To.UTC())
	}
	return db
}

// partnerTypeIs matches rows whose partner_type equals pt, counting rows
// without a partner_type as suppliers.
func partnerTypeIs(pt rfq.PartnerType) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("COALESCE(partner_type, ?) = ?", string(rfq.PartnerSupplier), string(pt))
	}
}

// Projects returns all projects ordered by project number.
func (r *Reader) Projects(ctx context.Context) ([]rfq.Project, error) {
	var rows []projectRow
	if err := r.db.WithContext(ctx).Order("project_number").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return lo.Map(rows, func(row projectRow, _ int) rfq.Project { return row.toProject() }), nil
}

// SuppliersByPartnerType lists partners of the given type, optionally within
// one project. A nil pt returns every partner.
func (r *Reader) SuppliersByPartnerType(ctx context.Context, projectNumber string, pt *rfq.PartnerType) ([]rfq.Supplier, error) {
	db := r.db.WithContext(ctx).Model(&supplierRow{})
	if projectNumber != "" {
		db = db.Where("project_number = ?", projectNumber)
	}
	if pt != nil {
		db = db.Scopes(partnerTypeIs(*pt))
	}

	var rows []supplierRow
	if err := db.Order("project_number, supplier_name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing suppliers: %w", err)
	}
	return lo.Map(rows, func(row supplierRow, _ int) rfq.Supplier { return row.toSupplier() }), nil
}

// SubmissionsByPartnerType returns submissions matching f, newest first.
func (r *Reader) SubmissionsByPartnerType(ctx context.Context, f SubmissionFilter) ([]rfq.Submission, error) {
	var rows []submissionRow
	err := f.apply(r.db.WithContext(ctx).Model(&submissionRow{})).
		Order("date DESC, first_seen DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	return lo.Map(rows, func(row submissionRow, _ int) rfq.Submission { return row.toSubmission() }), nil
}

// VersionChain is every stored version of one exchange folder, newest first.
type VersionChain struct {
	FolderName string
	Versions   []rfq.Submission
}

// Latest returns the newest version.
func (c VersionChain) Latest() rfq.Submission {
	return c.Versions[0]
}

// VersionChains groups the submissions of one partner by folder name.
// Chains are ordered by their newest version, newest first.
func (r *Reader) VersionChains(ctx context.Context, projectNumber, supplierName string) ([]VersionChain, error) {
	subs, err := r.SubmissionsByPartnerType(ctx, SubmissionFilter{
		ProjectNumber: projectNumber,
		SupplierName:  supplierName,
	})
	if err != nil {
		return nil, err
	}

	groups := lo.GroupBy(subs, func(s rfq.Submission) string { return s.FolderName })
	chains := make([]VersionChain, 0, len(groups))
	for name, versions := range groups {
		sortVersions(versions)
		chains = append(chains, VersionChain{FolderName: name, Versions: versions})
	}
	sort.Slice(chains, func(i, j int) bool {
		a, b := chains[i].Latest(), chains[j].Latest()
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return chains[i].FolderName < chains[j].FolderName
	})
	return chains, nil
}

func sortVersions(versions []rfq.Submission) {
	sort.SliceStable(versions, func(i, j int) bool {
		if !versions[i].Date.Equal(versions[j].Date) {
			return versions[i].Date.After(versions[j].Date)
		}
		return versions[i].FirstSeen.After(versions[j].FirstSeen)
	})
}

// PartnerStat counts the stored exchanges with one partner.
type PartnerStat struct {
	ProjectNumber string
	SupplierName  string
	PartnerType   rfq.PartnerType
	Sent          int
	Received      int
}

// PartnerStats returns sent/received counts per partner of a project,
// ordered by partner name. A nil pt counts every partner.
func (r *Reader) PartnerStats(ctx context.Context, projectNumber string, pt *rfq.PartnerType) ([]PartnerStat, error) {
	type statRow struct {
		ProjectNumber string
		SupplierName  string
		PartnerType   string
		Sent          int
		Received      int
	}

	var rows []statRow
	err := SubmissionFilter{ProjectNumber: projectNumber, PartnerType: pt}.
		apply(r.db.WithContext(ctx).Model(&submissionRow{})).
		Select(`project_number, supplier_name,
			COALESCE(partner_type, ?) AS partner_type,
			SUM(CASE WHEN type = ? THEN 1 ELSE 0 END) AS sent,
			SUM(CASE WHEN type = ? THEN 1 ELSE 0 END) AS received`,
			string(rfq.PartnerSupplier), string(rfq.DirectionSent), string(rfq.DirectionReceived)).
		Group("project_number, supplier_name, COALESCE(partner_type, '" + string(rfq.PartnerSupplier) + "')").
		Order("project_number, supplier_name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("computing partner stats: %w", err)
	}
	return lo.Map(rows, func(row statRow, _ int) PartnerStat {
		return PartnerStat{
			ProjectNumber: row.ProjectNumber,
			SupplierName:  row.SupplierName,
			PartnerType:   rfq.PartnerType(row.PartnerType),
			Sent:          row.Sent,
			Received:      row.Received,
		}
	}), nil
}

// ProjectStat summarizes the RFQ activity of one project.
type ProjectStat struct {
	ProjectNumber string
	// Contacted is the number of partners with at least one sent exchange.
	Contacted int
	// Responded is the number of partners with at least one received exchange.
	Responded int
}

// ProjectStats returns one entry per project that has submissions, ordered
// by project number. A nil pt counts every partner.
func (r *Reader) ProjectStats(ctx context.Context, pt *rfq.PartnerType) ([]ProjectStat, error) {
	type exchange struct {
		ProjectNumber string
		SupplierName  string
		Type          string
	}

	var rows []exchange
	err := SubmissionFilter{PartnerType: pt}.
		apply(r.db.WithContext(ctx).Model(&submissionRow{})).
		Distinct("project_number", "supplier_name", "type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("computing project stats: %w", err)
	}

	byProject := lo.GroupBy(rows, func(e exchange) string { return e.ProjectNumber })
	stats := make([]ProjectStat, 0, len(byProject))
	for number, exchanges := range byProject {
		partnersWith := func(d rfq.Direction) int {
			names := lo.FilterMap(exchanges, func(e exchange, _ int) (string, bool) {
				return e.SupplierName, e.Type == string(d)
			})
			return len(lo.Uniq(names))
		}
		stats = append(stats, ProjectStat{
			ProjectNumber: number,
			Contacted:     partnersWith(rfq.DirectionSent),
			Responded:     partnersWith(rfq.DirectionReceived),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].ProjectNumber < stats[j].ProjectNumber })
	return stats, nil
}

package rfq

import (
	"path/filepath"
	"slices"
	"strings"
)

const (
	sentFolder             = "Sent"
	receivedFolder         = "Received"
	receivedFolderMisspelt = "Recieved"
)

// LayoutRule describes one generation of the folder layout under an RFQ root.
// A rule with an Intermediate name matches when the RFQ root has a child
// folder with exactly that name; the partner folders inside it get
// PartnerType. A rule without an Intermediate is a fallback: it applies only
// when no intermediate rule matched, and treats every child of the RFQ root
// as a partner.
type LayoutRule struct {
	Name         string
	Intermediate string
	PartnerType  PartnerType
}

func (r LayoutRule) isFallback() bool { return r.Intermediate == "" }

// DefaultLayoutRules lists the known layouts in priority order.
var DefaultLayoutRules = []LayoutRule{
	{Name: "supplier-quotes", Intermediate: "Supplier RFQ Quotes", PartnerType: PartnerSupplier},
	{Name: "contractor-quotes", Intermediate: "Contractor RFQ Quotes", PartnerType: PartnerContractor},
	{Name: "quotes", Intermediate: "RFQ Quotes", PartnerType: PartnerSupplier},
	{Name: "legacy", PartnerType: PartnerSupplier},
}

// PartnerFolder is a partner discovered under an RFQ root together with its
// submission folders.
type PartnerFolder struct {
	Name        string
	Path        string
	PartnerType PartnerType
	Rule        string
	Sent        []string
	Received    []string
}

// ScanResult is the structure discovered under one project folder.
type ScanResult struct {
	ProjectNumber string
	Path          string
	RFQRoots      []string
	Partners      []PartnerFolder
}

// Scanner discovers partners and submission folders within project folders.
type Scanner struct {
	fsmgr  FilesystemManager
	opts   Options
	rules  []LayoutRule
	logger Logger
}

// NewScanner creates a Scanner. A nil rules slice selects DefaultLayoutRules.
func NewScanner(fsmgr FilesystemManager, opts Options, rules []LayoutRule, logger Logger) *Scanner {
	if rules == nil {
		rules = DefaultLayoutRules
	}
	return &Scanner{fsmgr: fsmgr, opts: opts, rules: rules, logger: logger}
}

// IsProjectFolder reports whether name is a project number: one or more ASCII digits.
func IsProjectFolder(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if name[i] < '0' || name[i] > '9' {
			return false
		}
	}
	return true
}

// ShouldSkipFolder reports whether a folder name contains any filter tag,
// ignoring case.
func (s *Scanner) ShouldSkipFolder(name string) bool {
	lower := strings.ToLower(name)
	for _, tag := range s.opts.FilterTags {
		if tag != "" && strings.Contains(lower, strings.ToLower(tag)) {
			return true
		}
	}
	return false
}

// ShouldSkipFile reports whether a file name ends with a filtered suffix,
// ignoring case.
func (s *Scanner) ShouldSkipFile(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range s.opts.FileFilterTags {
		if suffix != "" && strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}

// FindRFQRoots returns the immediate children of projectPath whose names
// match a configured RFQ root name, ignoring case.
func (s *Scanner) FindRFQRoots(projectPath string) ([]string, error) {
	children, err := s.childFolders(projectPath)
	if err != nil {
		return nil, err
	}

	var roots []string
	for _, name := range children {
		if !s.isRFQRootName(name) {
			continue
		}
		roots = append(roots, filepath.Join(projectPath, name))
	}
	return roots, nil
}

func (s *Scanner) isRFQRootName(name string) bool {
	for _, candidate := range s.opts.RFQFolderNames {
		if strings.EqualFold(name, candidate) {
			return true
		}
	}
	return false
}

// Scan discovers all partners and their submission folders in a project
// folder. A missing or unreadable project folder is logged and yields an
// empty result.
func (s *Scanner) Scan(projectPath string) *ScanResult {
	result := &ScanResult{
		ProjectNumber: filepath.Base(projectPath),
		Path:          projectPath,
	}

	roots, err := s.FindRFQRoots(projectPath)
	if err != nil {
		s.logger.Warn("project folder not readable", "project", result.ProjectNumber, "path", projectPath, "error", err)
		return result
	}
	if len(roots) == 0 {
		s.logger.Debug("no RFQ folder found", "project", result.ProjectNumber, "path", projectPath)
	}
	result.RFQRoots = roots

	for _, root := range roots {
		partners, err := s.ClassifyPartners(root)
		if err != nil {
			s.logger.Warn("RFQ folder not readable", "project", result.ProjectNumber, "path", root, "error", err)
			continue
		}
		for i := range partners {
			s.findSubmissions(&partners[i], result.ProjectNumber)
		}
		result.Partners = append(result.Partners, partners...)
	}
	return result
}

// ClassifyPartners applies the layout rules to one RFQ root and returns the
// partner folders found, without their submissions.
func (s *Scanner) ClassifyPartners(rfqRoot string) ([]PartnerFolder, error) {
	children, err := s.childFolders(rfqRoot)
	if err != nil {
		return nil, err
	}

	var partners []PartnerFolder
	matched := false
	for _, rule := range s.rules {
		if rule.isFallback() || !slices.Contains(children, rule.Intermediate) {
			continue
		}
		matched = true
		dir := filepath.Join(rfqRoot, rule.Intermediate)
		found, err := s.partnersIn(dir, rule)
		if err != nil {
			s.logger.Warn("partner folder not readable", "path", dir, "error", err)
			continue
		}
		partners = append(partners, found...)
	}
	if matched {
		return partners, nil
	}

	for _, rule := range s.rules {
		if !rule.isFallback() {
			continue
		}
		return s.partnersIn(rfqRoot, rule)
	}
	return nil, nil
}

func (s *Scanner) partnersIn(dir string, rule LayoutRule) ([]PartnerFolder, error) {
	names, err := s.childFolders(dir)
	if err != nil {
		return nil, err
	}
	partners := make([]PartnerFolder, 0, len(names))
	for _, name := range names {
		partners = append(partners, PartnerFolder{
			Name:        name,
			Path:        filepath.Join(dir, name),
			PartnerType: rule.PartnerType,
			Rule:        rule.Name,
		})
	}
	return partners, nil
}

func (s *Scanner) findSubmissions(p *PartnerFolder, projectNumber string) {
	children, err := s.childFolders(p.Path)
	if err != nil {
		s.logger.Warn("partner folder not readable", "project", projectNumber, "supplier", p.Name, "error", err)
		return
	}

	if slices.Contains(children, sentFolder) {
		p.Sent = s.submissionFolders(filepath.Join(p.Path, sentFolder), projectNumber, p.Name)
	} else {
		s.logger.Debug("no Sent folder", "project", projectNumber, "supplier", p.Name)
	}

	switch {
	case slices.Contains(children, receivedFolder):
		p.Received = s.submissionFolders(filepath.Join(p.Path, receivedFolder), projectNumber, p.Name)
	case slices.Contains(children, receivedFolderMisspelt):
		p.Received = s.submissionFolders(filepath.Join(p.Path, receivedFolderMisspelt), projectNumber, p.Name)
	default:
		s.logger.Debug("no Received folder", "project", projectNumber, "supplier", p.Name)
	}
}

func (s *Scanner) submissionFolders(dir, projectNumber, partner string) []string {
	names, err := s.childFolders(dir)
	if err != nil {
		s.logger.Warn("submission folder not readable", "project", projectNumber, "supplier", partner, "path", dir, "error", err)
		return nil
	}
	paths := make([]string, 0, len(names))
	for _, name := range names {
		paths = append(paths, filepath.Join(dir, name))
	}
	return paths
}

// childFolders returns the sorted names of the non-skipped subdirectories of dir.
func (s *Scanner) childFolders(dir string) ([]string, error) {
	entries, err := s.fsmgr.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		typ, err := entryType(s.fsmgr, dir, e)
		if err != nil {
			s.logger.Warn("skipping unresolvable link", "path", filepath.Join(dir, e.Name()), "error", err)
			continue
		}
		if !typ.IsDir() {
			continue
		}
		if s.ShouldSkipFolder(e.Name()) {
			s.logger.Debug("skipping folder", "path", filepath.Join(dir, e.Name()))
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

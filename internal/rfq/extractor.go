package rfq

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// ErrNotProjectFolder is returned when a folder name is not a project number.
var ErrNotProjectFolder = errors.New("not a project folder")

// Extractor builds the document model for one project folder.
type Extractor struct {
	fsmgr         FilesystemManager
	scanner       *Scanner
	fingerprinter *Fingerprinter
	clock         Clock
	logger        Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(fsmgr FilesystemManager, scanner *Scanner, fingerprinter *Fingerprinter, clock Clock, logger Logger) *Extractor {
	return &Extractor{
		fsmgr:         fsmgr,
		scanner:       scanner,
		fingerprinter: fingerprinter,
		clock:         clock,
		logger:        logger,
	}
}

// ExtractProject scans a project folder and returns its bundle. Submissions
// that cannot be built are logged and left out. The only errors are a folder
// name that is not a project number and context cancellation; on
// cancellation the partial bundle is returned alongside the error.
func (e *Extractor) ExtractProject(ctx context.Context, projectPath string) (*Bundle, error) {
	absPath, err := e.fsmgr.Abs(projectPath)
	if err != nil {
		return nil, fmt.Errorf("resolving project path: %w", err)
	}
	number := filepath.Base(absPath)
	if !IsProjectFolder(number) {
		return nil, fmt.Errorf("%s: %w", absPath, ErrNotProjectFolder)
	}

	scanned := e.clock.Now().UTC()
	bundle := &Bundle{
		Project: Project{
			ProjectNumber: number,
			Path:          absPath,
			LastScanned:   scanned,
		},
		Suppliers:   []Supplier{},
		Submissions: []Submission{},
	}

	result := e.scanner.Scan(absPath)
	for _, partner := range result.Partners {
		bundle.Suppliers = append(bundle.Suppliers, Supplier{
			ProjectNumber: number,
			SupplierName:  partner.Name,
			PartnerType:   PartnerTypePtr(partner.PartnerType),
			Path:          partner.Path,
		})

		for _, dir := range []struct {
			direction Direction
			folders   []string
		}{
			{DirectionSent, partner.Sent},
			{DirectionReceived, partner.Received},
		} {
			for _, folder := range dir.folders {
				if err := ctx.Err(); err != nil {
					return bundle, err
				}
				sub, err := e.buildSubmission(number, partner, dir.direction, folder)
				if err != nil {
					e.logger.Error("building submission", "project", number, "supplier", partner.Name, "path", folder, "error", err)
					continue
				}
				bundle.Submissions = append(bundle.Submissions, *sub)
			}
		}
	}

	e.logger.Debug("project extracted", "project", number,
		"suppliers", len(bundle.Suppliers), "submissions", len(bundle.Submissions))
	return bundle, nil
}

func (e *Extractor) buildSubmission(projectNumber string, partner PartnerFolder, direction Direction, folder string) (*Submission, error) {
	absFolder, err := e.fsmgr.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("resolving folder: %w", err)
	}

	digest, err := e.fingerprinter.Fingerprint(absFolder)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting: %w", err)
	}

	return &Submission{
		ProjectNumber: projectNumber,
		SupplierName:  partner.Name,
		Type:          direction,
		FolderName:    filepath.Base(absFolder),
		FolderPath:    absFolder,
		Date:          e.folderDate(projectNumber, absFolder),
		ContentHash:   digest.Hash,
		Files:         digest.Files,
		PartnerType:   PartnerTypePtr(partner.PartnerType),
	}, nil
}

// folderDate returns the folder creation time in UTC, or the current time
// when it cannot be determined.
func (e *Extractor) folderDate(projectNumber, folder string) time.Time {
	created, err := e.fsmgr.CreationTime(folder)
	if err != nil {
		e.logger.Error("reading folder creation time", "project", projectNumber, "path", folder, "error", err)
		return e.clock.Now().UTC()
	}
	return created.UTC()
}

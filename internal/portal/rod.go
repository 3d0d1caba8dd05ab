package portal

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/amanzav/geese/internal/config"
	"github.com/amanzav/geese/internal/types"
)

// Selectors for the board's markup. Centralized because the portal reskins
// its front end roughly once a year.
const (
	selUsername      = "#userNameInput"
	selUsernameNext  = "#nextButton"
	selPassword      = "#passwordInput"
	selPasswordNext  = "#submitButton"
	selTrustBrowser  = "#trust-browser-button"
	selDashboardMark = "h1"
	selFilterButton  = ".doc-viewer--filter-bar button"
	selJobTable      = ".data-viewer-table"
	selPagination    = ".pagination"
	selDetailPanel   = ".is--long-form-reading"
	selDetailSection = ".js--question--container"
	selPanelClose    = `[class="btn__default--text btn--default protip"]`
	selActionBar     = ".floating--action-bar.color--bg--default button"
	selJobIDCell     = ".overflow--ellipsis"
)

// Section labels the detail panel prefixes its free-text blocks with.
var sectionLabels = map[string]string{
	"Job Summary:":                      "summary",
	"Job Responsibilities:":             "responsibilities",
	"Required Skills:":                  "skills",
	"Additional Information:":           "additional_info",
	"Employment Location Arrangement:":  "employment_location_arrangement",
	"Work Term Duration:":               "work_term_duration",
	"Compensation and Benefits:":        "compensation",
	"Targeted Degrees and Disciplines:": "targeted_degrees",
	"Application Documents Required:":   "application_documents",
}

var externalApplyRe = regexp.MustCompile(`(?i)apply (directly|externally)|external application`)

// RodSession is the production Session backed by a Chromium instance.
type RodSession struct {
	cfg      config.PortalConfig
	username string
	password string
	logger   *zap.Logger

	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	closeOnce sync.Once
	closeErr  error
}

// NewRodSession launches the browser but does not navigate anywhere yet.
func NewRodSession(cfg config.PortalConfig, username, password string, logger *zap.Logger) (*RodSession, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: missing credentials", ErrAuth)
	}

	l := launcher.New().Headless(cfg.Headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	logger.Debug("browser launched", zap.Bool("headless", cfg.Headless))
	return &RodSession{
		cfg:      cfg,
		username: username,
		password: password,
		logger:   logger,
		launcher: l,
		browser:  browser,
	}, nil
}

// Login walks the two-step credential form, then blocks on the two-factor
// trust prompt until the user approves on their device.
func (s *RodSession) Login(ctx context.Context) error {
	page, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{
		URL: s.cfg.BaseURL + "/waterloo.htm?action=login",
	})
	if err != nil {
		return fmt.Errorf("%w: open login page: %v", ErrAuth, err)
	}
	s.page = page

	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("%w: login page load: %v", ErrAuth, err)
	}

	if err := s.typeAndSubmit(selUsername, s.username, selUsernameNext); err != nil {
		return fmt.Errorf("%w: username step: %v", ErrAuth, err)
	}
	if err := s.typeAndSubmit(selPassword, s.password, selPasswordNext); err != nil {
		return fmt.Errorf("%w: password step: %v", ErrAuth, err)
	}

	// Two-factor. The trust button appears only after device approval, so
	// the element wait doubles as the human-in-the-loop pause.
	s.logger.Info("waiting for two-factor approval")
	trust, err := page.Timeout(2 * time.Minute).Element(selTrustBrowser)
	if err != nil {
		return fmt.Errorf("%w: two-factor not approved: %v", ErrAuth, err)
	}
	if err := trust.Click("left", 1); err != nil {
		return fmt.Errorf("%w: trust browser: %v", ErrAuth, err)
	}

	if _, err := page.Timeout(s.cfg.ElementTimeout).ElementR(selDashboardMark, "WaterlooWorks"); err != nil {
		return fmt.Errorf("%w: dashboard did not load: %v", ErrAuth, err)
	}

	s.logger.Info("portal session authenticated")
	return nil
}

func (s *RodSession) typeAndSubmit(inputSel, value, buttonSel string) error {
	input, err := s.page.Timeout(s.cfg.ElementTimeout).Element(inputSel)
	if err != nil {
		return fmt.Errorf("find %s: %w", inputSel, err)
	}
	if err := input.Input(value); err != nil {
		return fmt.Errorf("type into %s: %w", inputSel, err)
	}
	button, err := s.page.Timeout(s.cfg.ElementTimeout).Element(buttonSel)
	if err != nil {
		return fmt.Errorf("find %s: %w", buttonSel, err)
	}
	if err := button.Click("left", 1); err != nil {
		return fmt.Errorf("click %s: %w", buttonSel, err)
	}
	return nil
}

// ListJobs walks the folder's paginated table and collects the listing rows.
func (s *RodSession) ListJobs(ctx context.Context, folder string) ([]types.JobRow, error) {
	page := s.page.Context(ctx)

	if err := page.Navigate(s.cfg.BaseURL + "/myAccount/co-op/full/jobs.htm"); err != nil {
		return nil, fmt.Errorf("navigate jobs page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("jobs page load: %w", err)
	}

	if filterBtn, err := page.Timeout(s.cfg.ElementTimeout).Element(selFilterButton); err == nil {
		if err := filterBtn.Click("left", 1); err != nil {
			return nil, fmt.Errorf("open filter bar: %w", err)
		}
	}

	var rows []types.JobRow
	pages, err := s.paginationCount(page)
	if err != nil {
		return nil, err
	}

	for p := 0; p < pages; p++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageRows, err := s.scrapeTablePage(page)
		if err != nil {
			return nil, fmt.Errorf("scrape page %d: %w", p+1, err)
		}
		rows = append(rows, pageRows...)

		if p+1 < pages {
			if err := s.nextPage(page); err != nil {
				return nil, fmt.Errorf("advance to page %d: %w", p+2, err)
			}
		}
	}

	s.logger.Info("folder enumerated",
		zap.String("folder", folder),
		zap.Int("pages", pages),
		zap.Int("rows", len(rows)))
	return rows, nil
}

func (s *RodSession) scrapeTablePage(page *rod.Page) ([]types.JobRow, error) {
	table, err := page.Timeout(s.cfg.ElementTimeout).Element(selJobTable)
	if err != nil {
		return nil, fmt.Errorf("job table: %w", err)
	}

	trs, err := table.Elements("tr")
	if err != nil {
		return nil, fmt.Errorf("table rows: %w", err)
	}

	var rows []types.JobRow
	for i, tr := range trs {
		if i == 0 {
			continue // header
		}
		cells, err := tr.Elements("td")
		if err != nil || len(cells) < 3 {
			continue
		}

		idEl, err := tr.Element(selJobIDCell)
		if err != nil {
			continue
		}
		jobID, err := idEl.Text()
		if err != nil {
			continue
		}
		jobID = strings.TrimSpace(jobID)
		if jobID == "" {
			continue
		}

		row := types.JobRow{JobID: jobID}
		if title, err := cells[1].Text(); err == nil {
			row.Title = strings.TrimSpace(title)
		}
		if company, err := cells[2].Text(); err == nil {
			row.Company = strings.TrimSpace(company)
		}
		if link, err := tr.Element("a"); err == nil {
			if href, err := link.Attribute("href"); err == nil && href != nil {
				row.Href = *href
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// paginationCount mirrors the board's pagination widget: first/prev/next/last
// plus one li per page.
func (s *RodSession) paginationCount(page *rod.Page) (int, error) {
	pagination, err := page.Timeout(s.cfg.ElementTimeout).Element(selPagination)
	if err != nil {
		return 1, nil // single page, no widget
	}
	items, err := pagination.Elements("li")
	if err != nil {
		return 0, fmt.Errorf("pagination items: %w", err)
	}
	count := len(items) - 4
	if count < 1 {
		count = 1
	}
	return count, nil
}

func (s *RodSession) nextPage(page *rod.Page) error {
	pagination, err := page.Timeout(s.cfg.ElementTimeout).Element(selPagination)
	if err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	items, err := pagination.Elements("li")
	if err != nil || len(items) < 2 {
		return fmt.Errorf("pagination items: %w", err)
	}
	link, err := items[len(items)-2].Element("a")
	if err != nil {
		return fmt.Errorf("next link: %w", err)
	}
	if err := link.Click("left", 1); err != nil {
		return fmt.Errorf("click next: %w", err)
	}
	return page.WaitStable(time.Second)
}

// FetchDetail opens the posting's panel from its row and scrapes the labeled
// sections. The panel is closed before returning, success or not.
func (s *RodSession) FetchDetail(ctx context.Context, row types.JobRow) (*types.Job, error) {
	page := s.page.Context(ctx).Timeout(s.cfg.DetailTimeout)

	link, err := page.ElementR("td a", regexp.QuoteMeta(row.Title))
	if err != nil {
		return nil, &FetchError{JobID: row.JobID, Err: fmt.Errorf("row link: %w", err)}
	}
	_ = link.ScrollIntoView()
	if err := link.Click("left", 1); err != nil {
		return nil, &FetchError{JobID: row.JobID, Err: fmt.Errorf("open panel: %w", err)}
	}
	defer s.closeDetailPanel(page)

	panel, err := page.Element(selDetailPanel)
	if err != nil {
		return nil, &FetchError{JobID: row.JobID, Err: fmt.Errorf("detail panel: %w", err)}
	}

	sections, err := panel.Elements(selDetailSection)
	if err != nil {
		return nil, &FetchError{JobID: row.JobID, Err: fmt.Errorf("detail sections: %w", err)}
	}

	now := time.Now().UTC()
	job := &types.Job{
		JobID:     row.JobID,
		Title:     row.Title,
		Company:   row.Company,
		IsActive:  true,
		ScrapedAt: now,
		UpdatedAt: now,
	}

	for _, section := range sections {
		text, err := section.Text()
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		s.assignSection(job, text)
	}

	return job, nil
}

func (s *RodSession) assignSection(job *types.Job, text string) {
	for label, field := range sectionLabels {
		if !strings.HasPrefix(text, label) {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(text, label))
		switch field {
		case "summary":
			job.Summary = value
		case "responsibilities":
			job.Responsibilities = value
		case "skills":
			job.Skills = value
		case "additional_info":
			job.AdditionalInfo = value
		case "employment_location_arrangement":
			job.EmploymentLocationArrangement = value
		case "work_term_duration":
			job.WorkTermDuration = value
		case "compensation":
			job.CompensationRaw = value
		case "targeted_degrees":
			job.TargetedDegreesDisciplines = splitListField(value)
		case "application_documents":
			job.ApplicationDocumentsRequired = splitListField(value)
		}
		return
	}
}

func splitListField(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *RodSession) closeDetailPanel(page *rod.Page) {
	buttons, err := page.Elements(selPanelClose)
	if err != nil || len(buttons) == 0 {
		return
	}
	if err := buttons[len(buttons)-1].Click("left", 1); err != nil {
		s.logger.Debug("close panel failed", zap.Error(err))
	}
}

// SaveToFolder files the open posting into the shortlist folder via the
// floating action bar.
func (s *RodSession) SaveToFolder(ctx context.Context, jobID, folder string) error {
	page := s.page.Context(ctx).Timeout(s.cfg.ElementTimeout)

	buttons, err := page.Elements(selActionBar)
	if err != nil || len(buttons) == 0 {
		return fmt.Errorf("save %s: action bar not found", jobID)
	}

	var saveBtn *rod.Element
	for _, btn := range buttons {
		text, err := btn.Text()
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(text), "save") {
			saveBtn = btn
			break
		}
	}
	if saveBtn == nil {
		return fmt.Errorf("save %s: no save control", jobID)
	}
	if err := saveBtn.Click("left", 1); err != nil {
		return fmt.Errorf("save %s: %w", jobID, err)
	}

	if folderOption, err := page.ElementR("li a", regexp.QuoteMeta(folder)); err == nil {
		if err := folderOption.Click("left", 1); err != nil {
			return fmt.Errorf("save %s to %s: %w", jobID, folder, err)
		}
	}

	s.logger.Debug("job saved to folder",
		zap.String("job_id", jobID), zap.String("folder", folder))
	return nil
}

// UploadDocument attaches a local file through the posting's upload input.
func (s *RodSession) UploadDocument(ctx context.Context, jobID, filePath string) error {
	page := s.page.Context(ctx).Timeout(s.cfg.ElementTimeout)

	input, err := page.Element(`input[type="file"]`)
	if err != nil {
		return fmt.Errorf("upload for %s: file input: %w", jobID, err)
	}
	if err := input.SetFiles([]string{filePath}); err != nil {
		return fmt.Errorf("upload for %s: %w", jobID, err)
	}
	return nil
}

// Apply walks the posting's application flow. External-redirect postings and
// ones demanding documents beyond the prepared set are reported as skips.
func (s *RodSession) Apply(ctx context.Context, jobID string, documents []string) (*ApplyOutcome, error) {
	page := s.page.Context(ctx).Timeout(s.cfg.DetailTimeout)

	panel, err := page.Element(selDetailPanel)
	if err != nil {
		return nil, &FetchError{JobID: jobID, Err: fmt.Errorf("detail panel: %w", err)}
	}
	panelText, err := panel.Text()
	if err != nil {
		return nil, &FetchError{JobID: jobID, Err: fmt.Errorf("panel text: %w", err)}
	}

	if externalApplyRe.MatchString(panelText) {
		return &ApplyOutcome{
			Status: types.ApplicationSkippedExternal,
			Detail: "posting requires applying on an external site",
		}, nil
	}

	buttons, err := page.Elements(selActionBar)
	if err != nil || len(buttons) == 0 {
		return nil, &FetchError{JobID: jobID, Err: fmt.Errorf("action bar not found")}
	}
	if err := buttons[0].Click("left", 1); err != nil {
		return nil, &FetchError{JobID: jobID, Err: fmt.Errorf("click apply: %w", err)}
	}

	// Application package form. Select each prepared document by its name.
	for _, doc := range documents {
		option, err := page.ElementR("label", regexp.QuoteMeta(doc))
		if err != nil {
			return &ApplyOutcome{
				Status: types.ApplicationSkippedExtraDocs,
				Detail: fmt.Sprintf("document %q not available in package form", doc),
			}, nil
		}
		if err := option.Click("left", 1); err != nil {
			return nil, &FetchError{JobID: jobID, Err: fmt.Errorf("select document %q: %w", doc, err)}
		}
	}

	submit, err := page.ElementR("button", `(?i)^submit`)
	if err != nil {
		return &ApplyOutcome{
			Status: types.ApplicationSkippedPrescreen,
			Detail: "submit not reachable, posting has a pre-screening step",
		}, nil
	}
	if err := submit.Click("left", 1); err != nil {
		return nil, &FetchError{JobID: jobID, Err: fmt.Errorf("submit: %w", err)}
	}

	s.logger.Info("application submitted",
		zap.String("job_id", jobID), zap.Int("documents", len(documents)))
	return &ApplyOutcome{Status: types.ApplicationSubmitted}, nil
}

// Close tears down the page, browser and launcher. Idempotent.
func (s *RodSession) Close() error {
	s.closeOnce.Do(func() {
		if s.browser != nil {
			s.closeErr = s.browser.Close()
		}
		if s.launcher != nil {
			s.launcher.Cleanup()
		}
		s.logger.Debug("portal session closed")
	})
	return s.closeErr
}

var _ Session = (*RodSession)(nil)

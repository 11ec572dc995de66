package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"cero/internal/httpd"
)

// ReportsPage renders the report form with the account's entitlements.
func (s *Service) ReportsPage(req *httpd.Request) *httpd.Response {
	resp := httpd.NewResponse()
	resp.SetContentType("text/html")

	maxDays := s.Billing.MaxReportDays(req.AccountID)
	canExport := s.Billing.CanExportCSV(req.AccountID)
	canGroup := s.Billing.CanUseGrouping(req.AccountID)

	exportField := ""
	if canExport {
		exportField = `<p><label><input type="checkbox" name="export_csv" value="1"> Export as CSV</label></p>`
	}
	groupField := ""
	if canGroup {
		groupField = `<p><label>Grouping: <select name="grouping">` +
			`<option value="none">None</option>` +
			`<option value="day">By Day</option>` +
			`<option value="week">By Week</option>` +
			`<option value="month">By Month</option>` +
			`</select></label></p>`
	}

	resp.SetBody(fmt.Sprintf(
		`<html><head><title>Reports</title></head><body>`+
			`<h1>Reports</h1>`+
			`<p>Account: %s (ID: %d)</p>`+
			`<p>Maximum report range: %d days</p>`+
			`<p>CSV Export: %s</p>`+
			`<p>Grouping: %s</p>`+
			`<h2>Generate Report</h2>`+
			`<form method="POST" action="/reports/generate">`+
			`<p><label>Start Date: <input type="date" name="start_date" required></label></p>`+
			`<p><label>End Date: <input type="date" name="end_date" required></label></p>`+
			`%s%s`+
			`<p><button type="submit">Generate Report</button></p>`+
			`</form>`+
			`<p><a href="/">Home</a> | <a href="/dashboard">Dashboard</a></p>`+
			`</body></html>`,
		req.UserEmail, req.AccountID, maxDays,
		enabled(canExport), enabled(canGroup), exportField, groupField,
	))
	return resp
}

func enabled(b bool) string {
	if b {
		return "Enabled"
	}
	return "Disabled"
}

// ReportsGenerate validates the posted parameters and renders the
// report, as an HTML table or as a CSV attachment.
func (s *Service) ReportsGenerate(req *httpd.Request) *httpd.Response {
	resp := httpd.NewResponse()

	startStr, okStart := req.PostParam("start_date")
	endStr, okEnd := req.PostParam("end_date")
	if !okStart || !okEnd {
		resp.SetStatus(400)
		resp.SetContentType("text/html")
		resp.SetBody("<h1>Bad Request</h1><p>Missing date parameters</p>")
		return resp
	}

	start, errStart := time.Parse("2006-01-02", startStr)
	end, errEnd := time.Parse("2006-01-02", endStr)
	if errStart != nil || errEnd != nil {
		resp.SetStatus(400)
		resp.SetContentType("text/html")
		resp.SetBody("<h1>Bad Request</h1><p>Invalid date format</p>")
		return resp
	}

	exportStr, _ := req.PostParam("export_csv")
	groupingStr, _ := req.PostParam("grouping")
	params := Params{
		StartDate: start,
		EndDate:   end,
		ExportCSV: exportStr == "1",
		Grouping:  ParseGrouping(groupingStr),
	}

	if err := s.ValidateParams(req.AccountID, params); err != nil {
		resp.SetStatus(403)
		resp.SetContentType("text/html")
		resp.SetBody(fmt.Sprintf(
			`<h1>Access Denied</h1><p>%s</p><p><a href="/reports">Back</a></p>`, err))
		return resp
	}

	rows, err := s.Generate(req.AccountID, params)
	if err != nil {
		resp.SetStatus(500)
		resp.SetContentType("text/html")
		resp.SetBody("<h1>Error</h1><p>Failed to generate report</p>")
		return resp
	}

	if params.ExportCSV {
		return s.csvResponse(rows)
	}

	resp.SetContentType("text/html")
	resp.SetBody("<html><head><title>Report Results</title></head><body>")
	resp.AppendBody("<h1>Report Results</h1>")
	resp.AppendBody(`<table border="1"><tr><th>Date</th><th>Users</th><th>Sessions</th><th>Accounts</th></tr>`)
	for _, r := range rows {
		resp.AppendBody(fmt.Sprintf("<tr><td>%s</td><td>%d</td><td>%d</td><td>%d</td></tr>",
			r.Date, r.UserCount, r.SessionCount, r.AccountCount))
	}
	resp.AppendBody("</table>")
	resp.AppendBody(`<p><a href="/reports">Back to Reports</a></p>`)
	resp.AppendBody("</body></html>")
	return resp
}

// ReportsExportCSV exports the last 7 days as a CSV attachment.
func (s *Service) ReportsExportCSV(req *httpd.Request) *httpd.Response {
	if !s.Billing.CanExportCSV(req.AccountID) {
		resp := httpd.NewResponse()
		resp.SetStatus(403)
		resp.SetContentType("text/html")
		resp.SetBody("<h1>Access Denied</h1><p>CSV export not available on your plan</p>")
		return resp
	}

	end := time.Now().Truncate(24 * time.Hour)
	rows, err := s.Generate(req.AccountID, Params{
		StartDate: end.Add(-7 * 24 * time.Hour),
		EndDate:   end,
	})
	if err != nil {
		resp := httpd.NewResponse()
		resp.SetStatus(500)
		resp.SetContentType("text/html")
		resp.SetBody("<h1>Error</h1><p>Failed to generate report</p>")
		return resp
	}
	return s.csvResponse(rows)
}

func (s *Service) csvResponse(rows []Row) *httpd.Response {
	resp := httpd.NewResponse()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"Date", "Users", "Sessions", "Accounts"})
	for _, r := range rows {
		w.Write([]string{
			r.Date,
			strconv.Itoa(r.UserCount),
			strconv.Itoa(r.SessionCount),
			strconv.Itoa(r.AccountCount),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		s.Logger.Error("write report csv", "err", err)
		resp.SetStatus(500)
		resp.SetContentType("text/html")
		resp.SetBody("<h1>Error</h1>")
		return resp
	}

	resp.SetContentType("text/csv")
	resp.AddHeader("Content-Disposition",
		fmt.Sprintf(`attachment; filename="report-%s.csv"`, uuid.NewString()))
	resp.SetBody(buf.String())
	return resp
}

package report

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/aclscan/aclscan/internal/issues"
)

// IssueFeed is the flat XML document the monitoring endpoint consumes: one
// element per finding, with the error count as a top-level attribute so the
// consumer can derive a degraded health state without walking the elements.
type IssueFeed struct {
	XMLName  xml.Name    `xml:"issues"`
	Scanned  int         `xml:"scanned,attr"`
	Errors   int         `xml:"errors,attr"`
	Warnings int         `xml:"warnings,attr"`
	Issues   []FeedIssue `xml:"issue"`
}

// FeedIssue is one finding in the feed.
type FeedIssue struct {
	Folder   string `xml:"folder,attr"`
	Account  string `xml:"account,attr"`
	Severity string `xml:"severity,attr"`
	Message  string `xml:",chardata"`
}

// NewIssueFeed shapes the detector findings into the feed document. Scanned
// is the number of folders the findings were detected over.
func NewIssueFeed(scanned int, findings []issues.Issue) IssueFeed {
	errors, warnings := issues.Count(findings)

	feed := IssueFeed{
		Scanned:  scanned,
		Errors:   errors,
		Warnings: warnings,
		Issues:   make([]FeedIssue, 0, len(findings)),
	}
	for _, finding := range findings {
		feed.Issues = append(feed.Issues, FeedIssue{
			Folder:   finding.FolderPath,
			Account:  finding.Account,
			Severity: finding.Severity.String(),
			Message:  finding.Message,
		})
	}
	return feed
}

// Encode renders the feed with the XML header, the exact bytes written to
// the artifact and pushed to the monitor.
func (f IssueFeed) Encode() ([]byte, error) {
	body, err := xml.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode issue feed: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func writeFeed(out io.Writer, feed IssueFeed) error {
	encoded, err := feed.Encode()
	if err != nil {
		return err
	}
	_, err = out.Write(encoded)
	return err
}

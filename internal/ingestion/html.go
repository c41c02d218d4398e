package ingestion

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Platform is a job board whose markup gets dedicated selectors.
type Platform string

const (
	PlatformGreenhouse Platform = "greenhouse"
	PlatformLever      Platform = "lever"
	PlatformWorkday    Platform = "workday"
	PlatformUnknown    Platform = "unknown"
)

// DetectPlatform identifies the job board platform from a source URL.
func DetectPlatform(source string) Platform {
	parsed, err := url.Parse(source)
	if err != nil || parsed.Host == "" {
		return PlatformUnknown
	}

	host := strings.ToLower(parsed.Host)
	switch {
	case strings.Contains(host, "greenhouse.io"):
		return PlatformGreenhouse
	case strings.Contains(host, "lever.co"):
		return PlatformLever
	case strings.Contains(host, "workday.com"), strings.Contains(host, "myworkdayjobs.com"):
		return PlatformWorkday
	default:
		return PlatformUnknown
	}
}

// boilerplate is removed from every page before the main content is located.
const boilerplate = "nav, footer, header, script, style, noscript, template, svg, iframe, " +
	".ad, .advertisement, .ads, .sidebar, .cookie-banner, .popup"

func contentSelectors(p Platform) []string {
	switch p {
	case PlatformGreenhouse:
		return []string{".job__description.body", ".job__description", ".job-description__content", "#content", ".job-post-container"}
	case PlatformLever:
		return []string{".posting-page", ".section-wrapper.page-full-width", ".posting-description", ".content"}
	case PlatformWorkday:
		return []string{"[data-automation-id='jobDescription']", ".job-description"}
	default:
		return []string{
			".job-description", ".job-content", "#job-description", "#job-content",
			".posting-content", ".job-details", "[data-testid='job-description']",
			"main", "article", ".content", "#content",
		}
	}
}

func noiseSelectors(p Platform) []string {
	common := []string{
		"form", "#application-form", ".application-form", ".apply-button-container",
		".voluntary-disclosure", ".eeo-statement", ".eeo-section", ".legal-disclosure",
		".social-share", ".share-buttons", ".cookie-consent", ".gdpr-notice",
	}
	switch p {
	case PlatformGreenhouse:
		return append(common, ".application--wrapper", ".voluntary-self-id", "#usa_self_id_section", ".post-apply")
	case PlatformLever:
		return append(common, ".apply-section", ".lever-application-form", ".posting-apply")
	case PlatformWorkday:
		return append(common, "[data-automation-id='applyButton']", ".application-section")
	default:
		return common
	}
}

// HTMLText returns the readable text of an HTML job posting. Noise such as
// navigation and application forms is dropped and block elements become
// paragraph breaks so the character splitter sees the document structure.
// sourceURL, when known, selects board-specific markup.
func HTMLText(html []byte, sourceURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	platform := DetectPlatform(sourceURL)
	doc.Find(boilerplate).Remove()
	doc.Find(strings.Join(noiseSelectors(platform), ", ")).Remove()

	var content *goquery.Selection
	for _, selector := range contentSelectors(platform) {
		if sel := doc.Find(selector); sel.Length() > 0 {
			content = sel.First()
			break
		}
	}
	if content == nil {
		content = doc.Find("body")
	}

	content.Find("br").ReplaceWithHtml("\n")
	content.Find("li").PrependHtml("- ").AfterHtml("\n")
	content.Find("p, div, section, article, h1, h2, h3, h4, h5, h6, ul, ol, table, tr").AfterHtml("\n\n")

	return CleanText(trimLines(content.Text())), nil
}

func trimLines(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}

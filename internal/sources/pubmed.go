// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/bes-catalog/internal/metrics"
	"github.com/pdiddy/bes-catalog/pkg/types"
)

// pubmedAPIBase is the NCBI E-utilities base URL. Declared as a var so
// tests can substitute an httptest server.
var pubmedAPIBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// PubMed queries NCBI E-utilities: esearch for PMIDs, then efetch for the
// article records.
type PubMed struct {
	client
	apiKey string
}

// NewPubMed returns a PubMed source. cfg.PubMedAPIKey raises the NCBI rate
// limit when set.
func NewPubMed(cfg types.FetchConfig, m *metrics.Metrics) *PubMed {
	return &PubMed{client: newClient(types.SourcePubMed, cfg, m), apiKey: cfg.PubMedAPIKey}
}

// Name returns the source identifier.
func (c *PubMed) Name() string { return types.SourcePubMed }

// Search returns PubMed articles matching q.
func (c *PubMed) Search(ctx context.Context, q Query) ([]types.Paper, error) {
	if q.IsEmpty() {
		return nil, fmt.Errorf("empty PubMed query")
	}

	ids, err := c.esearch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("esearch: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	set, err := c.efetch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("efetch: %w", err)
	}

	var papers []types.Paper
	for _, a := range set.Articles {
		if p, ok := a.paper(); ok {
			papers = append(papers, p)
		}
	}
	return papers, nil
}

func (c *PubMed) esearch(ctx context.Context, q Query) ([]string, error) {
	v := url.Values{}
	v.Set("db", "pubmed")
	v.Set("term", q.Text)
	v.Set("retmode", "xml")
	v.Set("retmax", strconv.Itoa(c.limitFor(q)))
	if q.FromYear > 0 || q.ToYear > 0 {
		v.Set("datetype", "pdat")
		from, to := q.FromYear, q.ToYear
		if from == 0 {
			from = 1900
		}
		if to == 0 {
			to = 3000
		}
		v.Set("mindate", strconv.Itoa(from))
		v.Set("maxdate", strconv.Itoa(to))
	}
	if c.apiKey != "" {
		v.Set("api_key", c.apiKey)
	}

	body, err := c.get(ctx, pubmedAPIBase+"/esearch.fcgi?"+v.Encode())
	if err != nil {
		return nil, err
	}

	var res esearchResult
	if err := xml.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("parsing esearch response: %w", err)
	}
	return res.IDs, nil
}

func (c *PubMed) efetch(ctx context.Context, ids []string) (*pubmedArticleSet, error) {
	v := url.Values{}
	v.Set("db", "pubmed")
	v.Set("id", strings.Join(ids, ","))
	v.Set("retmode", "xml")
	v.Set("rettype", "abstract")
	if c.apiKey != "" {
		v.Set("api_key", c.apiKey)
	}

	body, err := c.get(ctx, pubmedAPIBase+"/efetch.fcgi?"+v.Encode())
	if err != nil {
		return nil, err
	}

	var set pubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("parsing efetch response: %w", err)
	}
	return &set, nil
}

// E-utilities XML structures. Titles and abstract sections may contain
// inline markup (<i>, <sub>), so they are read as inner XML and cleaned.
type esearchResult struct {
	IDs []string `xml:"IdList>Id"`
}

type pubmedArticleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	PMID    string `xml:"MedlineCitation>PMID"`
	Article struct {
		Title   innerText `xml:"ArticleTitle"`
		Journal struct {
			Title   string `xml:"Title"`
			ISOAbbr string `xml:"ISOAbbreviation"`
			PubDate struct {
				Year        string `xml:"Year"`
				MedlineDate string `xml:"MedlineDate"`
			} `xml:"JournalIssue>PubDate"`
		} `xml:"Journal"`
		Abstract []struct {
			Label string `xml:"Label,attr"`
			Text  string `xml:",innerxml"`
		} `xml:"Abstract>AbstractText"`
		Authors []struct {
			LastName       string `xml:"LastName"`
			ForeName       string `xml:"ForeName"`
			CollectiveName string `xml:"CollectiveName"`
		} `xml:"AuthorList>Author"`
		ELocationIDs []struct {
			Type  string `xml:"EIdType,attr"`
			Value string `xml:",chardata"`
		} `xml:"ELocationID"`
	} `xml:"MedlineCitation>Article"`
	Keywords   []string `xml:"MedlineCitation>KeywordList>Keyword"`
	ArticleIDs []struct {
		Type  string `xml:"IdType,attr"`
		Value string `xml:",chardata"`
	} `xml:"PubmedData>ArticleIdList>ArticleId"`
}

type innerText struct {
	XML string `xml:",innerxml"`
}

func (a pubmedArticle) paper() (types.Paper, bool) {
	title := strings.TrimSuffix(cleanText(a.Article.Title.XML), ".")
	if title == "" {
		return types.Paper{}, false
	}

	p := types.Paper{
		DOI:      a.doi(),
		Title:    title,
		Journal:  a.Article.Journal.Title,
		Keywords: strings.Join(a.Keywords, "; "),
		Source:   types.SourcePubMed,
	}
	if p.Journal == "" {
		p.Journal = a.Article.Journal.ISOAbbr
	}
	if pmid := strings.TrimSpace(a.PMID); pmid != "" {
		p.SourceURL = "https://pubmed.ncbi.nlm.nih.gov/" + pmid + "/"
	}
	p.Year = pubmedYear(a.Article.Journal.PubDate.Year, a.Article.Journal.PubDate.MedlineDate)

	var sections []string
	for _, s := range a.Article.Abstract {
		text := cleanText(s.Text)
		if text == "" {
			continue
		}
		if s.Label != "" {
			text = s.Label + ": " + text
		}
		sections = append(sections, text)
	}
	p.Abstract = strings.Join(sections, " ")

	for _, au := range a.Article.Authors {
		name := strings.TrimSpace(au.ForeName + " " + au.LastName)
		if name == "" {
			name = strings.TrimSpace(au.CollectiveName)
		}
		if name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	return p, true
}

func (a pubmedArticle) doi() string {
	for _, id := range a.ArticleIDs {
		if id.Type == "doi" {
			return strings.ToLower(strings.TrimSpace(id.Value))
		}
	}
	for _, id := range a.Article.ELocationIDs {
		if id.Type == "doi" {
			return strings.ToLower(strings.TrimSpace(id.Value))
		}
	}
	return ""
}

// pubmedYear reads PubDate/Year, falling back to the leading year of a
// MedlineDate such as "2019 Nov-Dec".
func pubmedYear(year, medline string) int {
	if y, err := strconv.Atoi(strings.TrimSpace(year)); err == nil {
		return y
	}
	if len(medline) >= 4 {
		if y, err := strconv.Atoi(medline[:4]); err == nil {
			return y
		}
	}
	return 0
}

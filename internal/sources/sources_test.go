// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bes-catalog/internal/catalog"
	"github.com/pdiddy/bes-catalog/internal/httputil"
	"github.com/pdiddy/bes-catalog/internal/metrics"
	"github.com/pdiddy/bes-catalog/pkg/types"
)

func TestMain(m *testing.M) {
	httputil.RetryBaseDelay = time.Millisecond
	os.Exit(m.Run())
}

// serve points *base at an httptest server for the duration of the test.
func serve(t *testing.T, base *string, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	old := *base
	*base = srv.URL
	t.Cleanup(func() {
		*base = old
		srv.Close()
	})
	return srv
}

// --- CrossRef ---

const crossrefBody = `{
  "status": "ok",
  "message": {
    "items": [
      {
        "DOI": "10.1016/J.BIORTECH.2020.123",
        "title": ["Carbon cloth anodes for <i>microbial fuel cells</i>"],
        "abstract": "<jats:title>Abstract</jats:title><jats:p>A dual-chamber MFC produced 800 mW/m<jats:sup>2</jats:sup> at 30 °C.</jats:p>",
        "author": [{"given": "Ana", "family": "Lopez"}, {"name": "BES Consortium"}],
        "container-title": ["Bioresource Technology"],
        "issued": {"date-parts": [[2020, 5]]},
        "subject": ["Bioengineering", "Waste Management"],
        "URL": "https://doi.org/10.1016/j.biortech.2020.123"
      },
      {"DOI": "10.1000/untitled", "title": []}
    ]
  }
}`

func TestCrossRefSearch(t *testing.T) {
	var got *http.Request
	serve(t, &crossrefAPIBase, func(w http.ResponseWriter, r *http.Request) {
		got = r
		fmt.Fprint(w, crossrefBody)
	})

	src := NewCrossRef(types.FetchConfig{CrossRefMailto: "lab@example.org", HTTPConfig: types.HTTPConfig{UserAgent: "test-agent"}}, nil)
	papers, err := src.Search(context.Background(), Query{Text: "microbial fuel cell", FromYear: 2015, MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, papers, 1)

	p := papers[0]
	assert.Equal(t, "10.1016/j.biortech.2020.123", p.DOI)
	assert.Equal(t, "Carbon cloth anodes for microbial fuel cells", p.Title)
	assert.Equal(t, "A dual-chamber MFC produced 800 mW/m2 at 30 °C.", p.Abstract)
	assert.Equal(t, []string{"Ana Lopez", "BES Consortium"}, p.Authors)
	assert.Equal(t, "Bioresource Technology", p.Journal)
	assert.Equal(t, 2020, p.Year)
	assert.Equal(t, "Bioengineering; Waste Management", p.Keywords)
	assert.Equal(t, types.SourceCrossRef, p.Source)

	q := got.URL.Query()
	assert.Equal(t, "microbial fuel cell", q.Get("query"))
	assert.Equal(t, "5", q.Get("rows"))
	assert.Equal(t, "lab@example.org", q.Get("mailto"))
	assert.Contains(t, q.Get("filter"), "from-pub-date:2015")
	assert.Equal(t, "test-agent", got.Header.Get("User-Agent"))
}

func TestJATSAbstract(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"<jats:p>Plain   text</jats:p>", "Plain text"},
		{"<jats:title>Abstract</jats:title><jats:p>Body</jats:p>", "Body"},
		{"Abstracts are short", "Abstracts are short"},
		{"Fe &amp; Mn oxides", "Fe & Mn oxides"},
		{"H<sub>2</sub> at 1 A/m<sup>2</sup>", "H2 at 1 A/m2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, jatsAbstract(tt.in), "input %q", tt.in)
	}
}

func TestCrossRefHTTPError(t *testing.T) {
	serve(t, &crossrefAPIBase, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	_, err := NewCrossRef(types.FetchConfig{}, m).Search(context.Background(), Query{Text: "mfc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceRequests.WithLabelValues("crossref", "http_500")))
}

func TestCrossRefRetriesRateLimit(t *testing.T) {
	calls := 0
	serve(t, &crossrefAPIBase, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, crossrefBody)
	})

	papers, err := NewCrossRef(types.FetchConfig{}, nil).Search(context.Background(), Query{Text: "mfc"})
	require.NoError(t, err)
	assert.Len(t, papers, 1)
	assert.Equal(t, 2, calls)
}

func TestEmptyQueries(t *testing.T) {
	cfg := types.FetchConfig{}
	for _, src := range []Source{NewCrossRef(cfg, nil), NewPubMed(cfg, nil), NewArxiv(cfg, nil)} {
		_, err := src.Search(context.Background(), Query{Text: "  "})
		assert.Error(t, err, src.Name())
	}
}

// --- PubMed ---

const esearchBody = `<?xml version="1.0"?>
<eSearchResult><Count>2</Count><RetMax>2</RetMax><IdList><Id>111</Id><Id>222</Id></IdList></eSearchResult>`

const efetchBody = `<?xml version="1.0"?>
<PubmedArticleSet>
 <PubmedArticle>
  <MedlineCitation>
   <PMID Version="1">111</PMID>
   <Article>
    <Journal>
     <Title>Water Research</Title>
     <JournalIssue><PubDate><Year>2019</Year></PubDate></JournalIssue>
    </Journal>
    <ArticleTitle>Power generation by <i>Geobacter sulfurreducens</i> biofilms.</ArticleTitle>
    <Abstract>
     <AbstractText Label="BACKGROUND">Microbial fuel cells convert organics.</AbstractText>
     <AbstractText Label="RESULTS">Power density reached 1.2 W/m<sup>2</sup>.</AbstractText>
    </Abstract>
    <AuthorList>
     <Author><LastName>Smith</LastName><ForeName>Jo</ForeName></Author>
     <Author><CollectiveName>MFC Study Group</CollectiveName></Author>
    </AuthorList>
    <ELocationID EIdType="pii">S0043</ELocationID>
   </Article>
   <KeywordList><Keyword>MFC</Keyword><Keyword>biofilm</Keyword></KeywordList>
  </MedlineCitation>
  <PubmedData>
   <ArticleIdList><ArticleId IdType="pubmed">111</ArticleId><ArticleId IdType="doi">10.1016/J.WATRES.2019.1</ArticleId></ArticleIdList>
  </PubmedData>
 </PubmedArticle>
 <PubmedArticle>
  <MedlineCitation>
   <PMID>222</PMID>
   <Article>
    <Journal><ISOAbbreviation>Bioelectrochemistry</ISOAbbreviation>
     <JournalIssue><PubDate><MedlineDate>2018 Nov-Dec</MedlineDate></PubDate></JournalIssue>
    </Journal>
    <ArticleTitle>Cathode catalysts for MECs</ArticleTitle>
    <ELocationID EIdType="doi">10.1000/mec.2</ELocationID>
   </Article>
  </MedlineCitation>
 </PubmedArticle>
</PubmedArticleSet>`

func TestPubMedSearch(t *testing.T) {
	var fetchIDs, apiKey string
	serve(t, &pubmedAPIBase, func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.URL.Query().Get("api_key")
		switch {
		case strings.HasSuffix(r.URL.Path, "/esearch.fcgi"):
			assert.Equal(t, "2010", r.URL.Query().Get("mindate"))
			fmt.Fprint(w, esearchBody)
		case strings.HasSuffix(r.URL.Path, "/efetch.fcgi"):
			fetchIDs = r.URL.Query().Get("id")
			fmt.Fprint(w, efetchBody)
		default:
			http.NotFound(w, r)
		}
	})

	src := NewPubMed(types.FetchConfig{PubMedAPIKey: "k123"}, nil)
	papers, err := src.Search(context.Background(), Query{Text: "microbial fuel cell", FromYear: 2010})
	require.NoError(t, err)
	require.Len(t, papers, 2)
	assert.Equal(t, "111,222", fetchIDs)
	assert.Equal(t, "k123", apiKey)

	p := papers[0]
	assert.Equal(t, "Power generation by Geobacter sulfurreducens biofilms", p.Title)
	assert.Equal(t, "10.1016/j.watres.2019.1", p.DOI)
	assert.Equal(t, "BACKGROUND: Microbial fuel cells convert organics. RESULTS: Power density reached 1.2 W/m2.", p.Abstract)
	assert.Equal(t, []string{"Jo Smith", "MFC Study Group"}, p.Authors)
	assert.Equal(t, "Water Research", p.Journal)
	assert.Equal(t, 2019, p.Year)
	assert.Equal(t, "MFC; biofilm", p.Keywords)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/111/", p.SourceURL)

	p = papers[1]
	assert.Equal(t, "10.1000/mec.2", p.DOI)
	assert.Equal(t, "Bioelectrochemistry", p.Journal)
	assert.Equal(t, 2018, p.Year)
	assert.Empty(t, p.Abstract)
}

func TestPubMedNoResults(t *testing.T) {
	fetched := false
	serve(t, &pubmedAPIBase, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/efetch.fcgi") {
			fetched = true
		}
		fmt.Fprint(w, `<eSearchResult><Count>0</Count><IdList></IdList></eSearchResult>`)
	})

	papers, err := NewPubMed(types.FetchConfig{}, nil).Search(context.Background(), Query{Text: "nothing"})
	require.NoError(t, err)
	assert.Empty(t, papers)
	assert.False(t, fetched)
}

func TestPubmedYear(t *testing.T) {
	assert.Equal(t, 2021, pubmedYear("2021", ""))
	assert.Equal(t, 2018, pubmedYear("", "2018 Nov-Dec"))
	assert.Equal(t, 0, pubmedYear("", "Spring"))
}

// --- arXiv ---

const arxivBody = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <title>arXiv Query</title>
  <entry>
    <id>http://arxiv.org/abs/2301.07041v2</id>
    <published>2023-01-17T10:00:00Z</published>
    <updated>2023-02-01T10:00:00Z</updated>
    <title>Modeling   bioelectrochemical
      systems</title>
    <summary>We model a microbial electrolysis cell.</summary>
    <author><name>R. Chen</name></author>
    <author><name>M. Okafor</name></author>
    <arxiv:doi>10.48550/arXiv.2301.07041</arxiv:doi>
    <arxiv:journal_ref>J. Power Sources 500 (2023)</arxiv:journal_ref>
    <link href="http://arxiv.org/abs/2301.07041v2" rel="alternate" type="text/html"/>
    <category term="q-bio.QM"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/1501.00001v1</id>
    <published>2015-01-01T00:00:00Z</published>
    <title>Old paper</title>
    <summary>Too old.</summary>
    <link href="http://arxiv.org/abs/1501.00001v1" rel="alternate"/>
  </entry>
</feed>`

func TestArxivSearch(t *testing.T) {
	var rawQuery string
	serve(t, &arxivAPIBase, func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, arxivBody)
	})

	papers, err := NewArxiv(types.FetchConfig{MaxResults: 7}, nil).Search(context.Background(), Query{Text: "microbial electrolysis", FromYear: 2020})
	require.NoError(t, err)
	require.Len(t, papers, 1, "entries before FromYear are dropped")

	p := papers[0]
	assert.Equal(t, "Modeling bioelectrochemical systems", p.Title)
	assert.Equal(t, "We model a microbial electrolysis cell.", p.Abstract)
	assert.Equal(t, []string{"R. Chen", "M. Okafor"}, p.Authors)
	assert.Equal(t, 2023, p.Year)
	assert.Equal(t, "10.48550/arXiv.2301.07041", p.DOI)
	assert.Equal(t, "J. Power Sources 500 (2023)", p.Journal)
	assert.Equal(t, "q-bio.QM", p.Keywords)
	assert.Equal(t, types.SourceArxiv, p.Source)

	assert.Contains(t, rawQuery, "search_query=all:microbial+AND+all:electrolysis")
	assert.Contains(t, rawQuery, "max_results=7")
}

func TestBuildArxivQuery(t *testing.T) {
	assert.Equal(t, "", buildArxivQuery("   "))
	assert.Equal(t, "all:mfc", buildArxivQuery("mfc"))
	assert.Equal(t, "all:carbon+AND+all:cloth", buildArxivQuery("carbon  cloth"))
}

func TestExtractArxivID(t *testing.T) {
	tests := []struct{ in, want string }{
		{"http://arxiv.org/abs/2301.07041v1", "2301.07041"},
		{"http://arxiv.org/abs/2301.07041", "2301.07041"},
		{"http://arxiv.org/abs/q-bio/0601001v3", "q-bio/0601001"},
		{"https://example.org/other", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractArxivID(tt.in), tt.in)
	}
}

// --- registry ---

func TestFromConfig(t *testing.T) {
	srcs, err := FromConfig(types.FetchConfig{}, nil)
	require.NoError(t, err)
	var names []string
	for _, s := range srcs {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"crossref", "pubmed", "arxiv"}, names)

	srcs, err = FromConfig(types.FetchConfig{Sources: []string{" ArXiv "}}, nil)
	require.NoError(t, err)
	require.Len(t, srcs, 1)
	assert.Equal(t, "arxiv", srcs[0].Name())

	_, err = FromConfig(types.FetchConfig{Sources: []string{"scopus"}}, nil)
	assert.Error(t, err)
}

func TestRequestDelaySpacesRequests(t *testing.T) {
	var times []time.Time
	serve(t, &crossrefAPIBase, func(w http.ResponseWriter, r *http.Request) {
		times = append(times, time.Now())
		fmt.Fprint(w, `{"message":{"items":[]}}`)
	})

	src := NewCrossRef(types.FetchConfig{RequestDelay: 50 * time.Millisecond}, nil)
	for i := 0; i < 3; i++ {
		_, err := src.Search(context.Background(), Query{Text: "mfc"})
		require.NoError(t, err)
	}
	require.Len(t, times, 3)
	assert.GreaterOrEqual(t, times[2].Sub(times[0]), 90*time.Millisecond)
}

// --- Fetch ---

type fakeSource struct {
	name   string
	papers []types.Paper
	err    error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Search(context.Context, Query) ([]types.Paper, error) {
	return f.papers, f.err
}

func testCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.Open(types.CatalogConfig{DBPath: filepath.Join(t.TempDir(), "catalog.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFetch(t *testing.T) {
	cat := testCatalog(t)
	ctx := context.Background()
	require.NoError(t, cat.Create(ctx, &types.Paper{Title: "Already stored paper", DOI: "10.1000/stored"}))

	crossref := &fakeSource{name: "crossref", papers: []types.Paper{
		{Title: "Microbial fuel cell power output with carbon cloth anodes", DOI: "10.1000/a",
			Abstract: "A microbial fuel cell with Geobacter biofilm produced electricity."},
		{Title: "Stored under another title", DOI: "https://doi.org/10.1000/STORED"},
	}}
	broken := &fakeSource{name: "pubmed", err: errors.New("connection refused")}
	arxiv := &fakeSource{name: "arxiv", papers: []types.Paper{
		{Title: "Microbial fuel cell: power output with carbon cloth anodes!", DOI: ""},
		{Title: "Microbial Fuel Cell Power Output With Carbon Cloth Anodes", DOI: "10.1000/other"},
		{Title: "Algae biocathode in a photosynthetic microbial fuel cell", DOI: "10.1000/b"},
	}}

	var buf bytes.Buffer
	sum, err := Fetch(ctx, cat, []Source{crossref, broken, arxiv}, Options{Query: Query{Text: "mfc"}}, nil, &buf)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Added)
	assert.Equal(t, 3, sum.Duplicates)
	assert.Equal(t, []string{"pubmed: connection refused"}, sum.SourceErrors)
	assert.True(t, sum.HasFailures())
	assert.Equal(t, 5, sum.Total())
	assert.Contains(t, buf.String(), "warning: source pubmed failed")

	papers, err := cat.Papers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, papers, 3)
	assert.NotNil(t, papers[1].Relevance, "new papers are scored on insert")
}

func TestFetchDropIrrelevant(t *testing.T) {
	cat := testCatalog(t)
	src := &fakeSource{name: "crossref", papers: []types.Paper{
		{Title: "Stock market volatility in emerging economies"},
		{Title: "Bioelectrochemical system with microbial fuel cell anodes", Abstract: "Shewanella biofilm on the anode."},
	}}

	var buf bytes.Buffer
	sum, err := Fetch(context.Background(), cat, []Source{src}, Options{Query: Query{Text: "x"}, DropIrrelevant: true}, nil, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Added)
	assert.Equal(t, 1, sum.Irrelevant)
}

func TestFetchValidation(t *testing.T) {
	cat := testCatalog(t)
	_, err := Fetch(context.Background(), cat, nil, Options{Query: Query{Text: "mfc"}}, nil, &bytes.Buffer{})
	assert.Error(t, err)
	_, err = Fetch(context.Background(), cat, []Source{&fakeSource{name: "x"}}, Options{}, nil, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestFetchCancelled(t *testing.T) {
	cat := testCatalog(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Fetch(ctx, cat, []Source{&fakeSource{name: "x"}}, Options{Query: Query{Text: "mfc"}}, nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

// --- query file ---

func TestQueryFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.yaml")
	in := []Query{
		{Text: "microbial fuel cell", FromYear: 2015, MaxResults: 25},
		{Text: "microbial electrolysis cell hydrogen"},
	}
	require.NoError(t, WriteQueryFile(path, in))

	out, err := ReadQueryFile(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReadQueryFileErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"no queries", "queries: []\n"},
		{"blank text", "queries:\n  - text: '  '\n"},
		{"inverted years", "queries:\n  - text: mfc\n    from_year: 2020\n    to_year: 2010\n"},
		{"bad yaml", "queries: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := ReadQueryFile(path)
			assert.Error(t, err)
		})
	}

	_, err := ReadQueryFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

package storage

const schema = `
CREATE TABLE IF NOT EXISTS papers (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    authors TEXT,
    abstract TEXT,
    published DATE,
    pdf_url TEXT,
    conference TEXT,
    conference_year TEXT,
    confidence REAL,
    categories TEXT,
    comment TEXT,
    fetched_date DATE DEFAULT CURRENT_DATE
);

CREATE INDEX IF NOT EXISTS idx_papers_conference ON papers(conference);
CREATE INDEX IF NOT EXISTS idx_papers_published ON papers(published);

CREATE TABLE IF NOT EXISTS conference_stats (
    conference TEXT PRIMARY KEY,
    total_papers INTEGER NOT NULL,
    avg_confidence REAL,
    last_updated DATE
);
`

const (
	papersTable = "papers"
	statsTable  = "conference_stats"

	categorySeparator = ", "
)

var paperColumns = []string{
	"id", "title", "authors", "abstract", "published", "pdf_url",
	"conference", "conference_year", "confidence", "categories", "comment", "fetched_date",
}

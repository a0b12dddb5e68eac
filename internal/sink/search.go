package sink

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/mygovdir/dirsync/internal/content"
	"github.com/mygovdir/dirsync/internal/domain"
	"github.com/mygovdir/dirsync/internal/reconcile"
)

const (
	// IndexDirname is the index directory name under the base dir
	IndexDirname = "directory.bleve"

	// MaxBatchSize is the maximum number of documents per bleve batch
	MaxBatchSize = 500

	// existingPageSize is the page size used when fetching an
	// organization's stored documents
	existingPageSize = 250
)

// indexDocument is the shape stored in the search index: the record's
// business fields plus the content hash recorded at write time.
type indexDocument struct {
	ID              string `json:"id"`
	OrgSort         int    `json:"org_sort"`
	OrgID           string `json:"org_id"`
	OrgName         string `json:"org_name"`
	OrgType         string `json:"org_type"`
	DivisionSort    int    `json:"division_sort"`
	DivisionName    string `json:"division_name"`
	SubdivisionName string `json:"subdivision_name"`
	PositionSort    int    `json:"position_sort"`
	PositionName    string `json:"position_name"`
	PersonName      string `json:"person_name"`
	PersonEmail     string `json:"person_email"`
	PersonPhone     string `json:"person_phone"`
	PersonFax       string `json:"person_fax"`
	ParentOrgID     string `json:"parent_org_id"`
	ContentHash     string `json:"content_hash"`
}

// SearchIndex is the bleve-backed sink. It doubles as the reconciler's
// system of record: stored documents carry the content hash of the record
// version they were written from.
type SearchIndex struct {
	path  string
	index bleve.Index
}

// NewSearchIndex opens or creates the directory index under baseDir.
func NewSearchIndex(baseDir string) (*SearchIndex, error) {
	path := filepath.Join(baseDir, IndexDirname)

	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(path, createIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open search index: %w", err)
	}

	return &SearchIndex{path: path, index: index}, nil
}

// createIndexMapping builds the bleve mapping for directory entries:
// exact-match keyword fields for ids and emails, full-text standard
// analysis for names, plain numeric fields for sort orders.
func createIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	keywordField := func() *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = true
		return f
	}
	textField := func() *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = standard.Name
		f.Store = true
		return f
	}
	numericField := func() *mapping.FieldMapping {
		f := bleve.NewNumericFieldMapping()
		f.Store = true
		return f
	}

	docMapping.AddFieldMappingsAt(domain.FieldOrgID, keywordField())
	docMapping.AddFieldMappingsAt(domain.FieldOrgType, keywordField())
	docMapping.AddFieldMappingsAt(domain.FieldParentOrgID, keywordField())
	docMapping.AddFieldMappingsAt(domain.FieldPersonEmail, keywordField())

	docMapping.AddFieldMappingsAt(domain.FieldOrgName, textField())
	docMapping.AddFieldMappingsAt(domain.FieldDivisionName, textField())
	docMapping.AddFieldMappingsAt(domain.FieldSubdivisionName, textField())
	docMapping.AddFieldMappingsAt(domain.FieldPositionName, textField())
	docMapping.AddFieldMappingsAt(domain.FieldPersonName, textField())
	docMapping.AddFieldMappingsAt(domain.FieldPersonPhone, keywordField())
	docMapping.AddFieldMappingsAt(domain.FieldPersonFax, keywordField())

	docMapping.AddFieldMappingsAt(domain.FieldOrgSort, numericField())
	docMapping.AddFieldMappingsAt(domain.FieldDivisionSort, numericField())
	docMapping.AddFieldMappingsAt(domain.FieldPositionSort, numericField())

	// ID and hash are stored for retrieval, not searched
	idField := bleve.NewTextFieldMapping()
	idField.Index = false
	idField.Store = true
	docMapping.AddFieldMappingsAt(domain.FieldID, idField)

	hashField := bleve.NewTextFieldMapping()
	hashField.Analyzer = keyword.Name
	hashField.Store = true
	docMapping.AddFieldMappingsAt(domain.FieldContentHash, hashField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

// Name implements reconcile.Sink.
func (s *SearchIndex) Name() string {
	return "search-index"
}

// Ping implements reconcile.Sink. A local index is reachable exactly when
// it answers a document count.
func (s *SearchIndex) Ping(ctx context.Context) error {
	if _, err := s.index.DocCount(); err != nil {
		return fmt.Errorf("search index unavailable: %w", err)
	}
	return nil
}

// Existing implements reconcile.StateSource: it returns all stored
// documents for one organization keyed by document id.
func (s *SearchIndex) Existing(ctx context.Context, orgID string) (map[string]reconcile.Stored, error) {
	existing := make(map[string]reconcile.Stored)

	orgQuery := bleve.NewTermQuery(orgID)
	orgQuery.SetField(domain.FieldOrgID)

	for from := 0; ; from += existingPageSize {
		req := bleve.NewSearchRequestOptions(orgQuery, existingPageSize, from, false)
		req.Fields = []string{"*"}

		res, err := s.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch existing documents for %s: %w", orgID, err)
		}

		for _, hit := range res.Hits {
			rec, hash := recordFromHit(hit.Fields)
			existing[hit.ID] = reconcile.Stored{Hash: hash, Record: rec}
		}

		if from+len(res.Hits) >= int(res.Total) || len(res.Hits) == 0 {
			break
		}
	}

	return existing, nil
}

// Apply implements reconcile.Sink: added and updated records are upserted
// by document id, stale ids are deleted. Per-document indexing errors are
// collected; the whole batch is always attempted.
func (s *SearchIndex) Apply(ctx context.Context, cs reconcile.ChangeSet) (reconcile.SinkResult, error) {
	var result reconcile.SinkResult

	batch := s.index.NewBatch()
	batchSize := 0

	flush := func() error {
		if batchSize == 0 {
			return nil
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("batch write failed: %w", err)
		}
		result.Applied += batchSize
		batch = s.index.NewBatch()
		batchSize = 0
		return nil
	}

	upsert := func(rec domain.DirectoryRecord) error {
		doc := toIndexDocument(rec)
		if err := batch.Index(doc.ID, doc); err != nil {
			result.Failed = append(result.Failed, reconcile.DocumentError{DocumentID: doc.ID, Err: err})
			return nil
		}
		batchSize++
		if batchSize >= MaxBatchSize {
			return flush()
		}
		return nil
	}

	for _, rec := range cs.Added {
		if err := upsert(rec); err != nil {
			return result, err
		}
	}
	for _, pair := range cs.Updated {
		if err := upsert(pair.New); err != nil {
			return result, err
		}
	}
	for _, rec := range cs.Deleted {
		batch.Delete(rec.DocumentID())
		batchSize++
		if batchSize >= MaxBatchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}

	if err := flush(); err != nil {
		return result, err
	}

	return result, nil
}

// Search runs a full-text query over the person, position, division and
// organization name fields, optionally filtered to one organization.
func (s *SearchIndex) Search(ctx context.Context, queryStr, orgID string, maxResults int) (*bleve.SearchResult, error) {
	nameQuery := bleve.NewMatchQuery(queryStr)
	nameQuery.SetField(domain.FieldPersonName)
	nameQuery.SetBoost(2.0)

	clauses := []query.Query{nameQuery}
	for _, field := range []string{
		domain.FieldPositionName,
		domain.FieldDivisionName,
		domain.FieldSubdivisionName,
		domain.FieldOrgName,
	} {
		q := bleve.NewMatchQuery(queryStr)
		q.SetField(field)
		clauses = append(clauses, q)
	}

	var searchQuery query.Query = bleve.NewDisjunctionQuery(clauses...)

	if orgID != "" {
		orgQuery := bleve.NewTermQuery(orgID)
		orgQuery.SetField(domain.FieldOrgID)
		searchQuery = bleve.NewConjunctionQuery(searchQuery, orgQuery)
	}

	req := bleve.NewSearchRequest(searchQuery)
	req.Size = maxResults
	req.Fields = []string{"*"}

	return s.index.SearchInContext(ctx, req)
}

// DocCount returns the number of documents in the index.
func (s *SearchIndex) DocCount() (uint64, error) {
	return s.index.DocCount()
}

// Close releases the index.
func (s *SearchIndex) Close() error {
	return s.index.Close()
}

func toIndexDocument(r domain.DirectoryRecord) indexDocument {
	return indexDocument{
		ID:              r.DocumentID(),
		OrgSort:         r.OrgSort,
		OrgID:           r.OrgID,
		OrgName:         r.OrgName,
		OrgType:         r.OrgType,
		DivisionSort:    r.DivisionSort,
		DivisionName:    r.DivisionName,
		SubdivisionName: r.SubdivisionName,
		PositionSort:    r.PositionSort,
		PositionName:    r.PositionName,
		PersonName:      r.PersonName,
		PersonEmail:     r.PersonEmail,
		PersonPhone:     r.PersonPhone,
		PersonFax:       r.PersonFax,
		ParentOrgID:     r.ParentOrgID,
		ContentHash:     content.HashRecord(r),
	}
}

// recordFromHit rebuilds a record from stored bleve fields. Numeric fields
// come back as float64.
func recordFromHit(fields map[string]any) (domain.DirectoryRecord, string) {
	str := func(name string) string {
		if v, ok := fields[name].(string); ok {
			return v
		}
		return ""
	}
	num := func(name string) int {
		if v, ok := fields[name].(float64); ok {
			return int(v)
		}
		return domain.SortSentinel
	}
	rec := domain.DirectoryRecord{
		OrgSort:         num(domain.FieldOrgSort),
		OrgID:           str(domain.FieldOrgID),
		OrgName:         str(domain.FieldOrgName),
		OrgType:         str(domain.FieldOrgType),
		DivisionSort:    num(domain.FieldDivisionSort),
		DivisionName:    str(domain.FieldDivisionName),
		SubdivisionName: str(domain.FieldSubdivisionName),
		PositionSort:    num(domain.FieldPositionSort),
		PositionName:    str(domain.FieldPositionName),
		PersonName:      str(domain.FieldPersonName),
		PersonEmail:     str(domain.FieldPersonEmail),
		PersonPhone:     str(domain.FieldPersonPhone),
		PersonFax:       str(domain.FieldPersonFax),
		ParentOrgID:     str(domain.FieldParentOrgID),
	}
	// A two-segment stored id carries an upstream stable key; it must be
	// restored or a later deletion would recompute the positional id.
	if suffix, ok := strings.CutPrefix(str(domain.FieldID), rec.OrgID+"/"); ok && !strings.Contains(suffix, "/") {
		rec.StableKey = suffix
	}
	return rec, str(domain.FieldContentHash)
}

package corpus

import (
	"encoding/json"
	"fmt"
	"os"
)

// #region corpus

// Corpus is the read-only knowledge base. It is built once and shared by value of pointer;
// none of its methods mutate it, and accessors hand out copies.
type Corpus struct {
	articles  []KnowledgeArticle
	byID      map[string]int
	citations map[string]Citation
}

// New validates articles and builds a Corpus over a private copy of them.
// Article IDs and citation IDs must be unique and categories known.
func New(articles []KnowledgeArticle) (*Corpus, error) {
	c := &Corpus{
		articles:  make([]KnowledgeArticle, len(articles)),
		byID:      make(map[string]int, len(articles)),
		citations: make(map[string]Citation),
	}
	for i, a := range articles {
		if a.ID == "" {
			return nil, fmt.Errorf("article %d: empty id", i)
		}
		if _, dup := c.byID[a.ID]; dup {
			return nil, fmt.Errorf("article %s: duplicate id", a.ID)
		}
		if !a.Category.Valid() {
			return nil, fmt.Errorf("article %s: unknown category %q", a.ID, a.Category)
		}
		for _, cit := range a.Citations {
			if cit.ID == "" {
				return nil, fmt.Errorf("article %s: citation with empty id", a.ID)
			}
			if _, dup := c.citations[cit.ID]; dup {
				return nil, fmt.Errorf("article %s: duplicate citation id %s", a.ID, cit.ID)
			}
			c.citations[cit.ID] = cit
		}
		c.articles[i] = cloneArticle(a)
		c.byID[a.ID] = i
	}
	return c, nil
}

// Articles returns the articles in corpus order.
func (c *Corpus) Articles() []KnowledgeArticle {
	out := make([]KnowledgeArticle, len(c.articles))
	for i, a := range c.articles {
		out[i] = cloneArticle(a)
	}
	return out
}

// Len returns the number of articles.
func (c *Corpus) Len() int {
	return len(c.articles)
}

// Article looks up an article by ID.
func (c *Corpus) Article(id string) (KnowledgeArticle, error) {
	i, ok := c.byID[id]
	if !ok {
		return KnowledgeArticle{}, fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	return cloneArticle(c.articles[i]), nil
}

// Citation looks up a citation by ID, including its full source text when present.
func (c *Corpus) Citation(id string) (Citation, error) {
	cit, ok := c.citations[id]
	if !ok {
		return Citation{}, fmt.Errorf("citation %s: %w", id, ErrNotFound)
	}
	return cit, nil
}

func cloneArticle(a KnowledgeArticle) KnowledgeArticle {
	a.Citations = append([]Citation(nil), a.Citations...)
	a.Triggers = append([]string(nil), a.Triggers...)
	return a
}

// #endregion corpus

// #region loader

// File is the on-disk JSON shape accepted by Load.
type File struct {
	Articles []KnowledgeArticle `json:"articles"`
	Cases    []CaseRecord       `json:"cases,omitempty"`
}

// Load reads a JSON corpus file and builds a Corpus from it.
func Load(path string) (*Corpus, []CaseRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("parse corpus %s: %w", path, err)
	}
	c, err := New(f.Articles)
	if err != nil {
		return nil, nil, fmt.Errorf("build corpus %s: %w", path, err)
	}
	return c, f.Cases, nil
}

// #endregion loader

// #region open

// Open returns the built-in corpus and cases when path is empty, and otherwise the file at
// path. A file without cases falls back to the built-in ones.
func Open(path string) (*Corpus, []CaseRecord, error) {
	if path == "" {
		return Default(), DefaultCases(), nil
	}
	c, cases, err := Load(path)
	if err != nil {
		return nil, nil, err
	}
	if len(cases) == 0 {
		cases = DefaultCases()
	}
	return c, cases, nil
}

// #endregion open

package commonModels

import "time"

type Document struct {
	Id          string    `json:"source_doc_id"`
	Name        string    `json:"doc_name"`
	Path        string    `json:"path"`
	Checksum    string    `json:"sha256"`
	LoadedAt    time.Time `json:"loaded_at"`
	ContentType DocType   `json:"contentType"`
	Content     []byte    `json:"-"`
}

// PageUnit is one page of extracted text. PageNum starts at 1.
type PageUnit struct {
	PageNum int    `json:"page_num"`
	Text    string `json:"text"`
}

type DocChunk struct {
	ChunkId        string `json:"chunk_id"`
	DocId          string `json:"source_doc_id"`
	DocName        string `json:"doc_name"`
	Chunk          string `json:"content"`
	PageNum        int    `json:"page_num"`
	ChunkPageOrder int    `json:"chunk_order"`
	GlobalOrder    int    `json:"global_order"`
	Offset         int    `json:"rune_offset"`
	EmbeddingModel string `json:"embedding_model"`
}

type IndexRecord struct {
	Chunk  DocChunk  `json:"chunk"`
	Vector []float32 `json:"vector"`
}

// Match is a retrieved chunk with its similarity score; higher is closer.
type Match struct {
	Chunk DocChunk `json:"chunk"`
	Score float32  `json:"score"`
}

type DocType string

var PDF DocType = "PDF"
var DOCX DocType = "DOCX"
var ODT DocType = "ODT"
var RTF DocType = "RTF"
var TXT DocType = "TXT"
var ERR DocType = "ERROR"

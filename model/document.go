package model

// Document is the raw text of one message file in the corpus.
type Document struct {
	Path string
	Text string
}

// Envelope wraps a document alongside an optional error encountered while reading it.
type Envelope struct {
	Document Document
	Err      error
}

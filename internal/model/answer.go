package model

// Source is one cited passage backing an answer: where the knowledge base
// found it and the snippet that was retrieved.
type Source struct {
	Location string `json:"location"`
	Snippet  string `json:"snippet"`
}

// Answer is the relayed knowledge-base response. Denied means the corpus
// visible to the caller's role held no usable context; that is an outcome,
// not an error.
type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
	Denied  bool     `json:"denied"`
}

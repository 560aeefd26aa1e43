// Package twiml renders orchestrator turns into the TwiML voice documents
// the telephony webhook provider executes.
package twiml

import "encoding/xml"

// Response is the root TwiML document. Verbs execute in order.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type Play struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

type Record struct {
	XMLName    xml.Name `xml:"Record"`
	Action     string   `xml:"action,attr,omitempty"`
	Method     string   `xml:"method,attr,omitempty"`
	MaxLength  int      `xml:"maxLength,attr,omitempty"`
	Timeout    int      `xml:"timeout,attr,omitempty"`
	PlayBeep   bool     `xml:"playBeep,attr"`
	Transcribe bool     `xml:"transcribe,attr"`
}

type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Marshal renders a response document with the XML declaration the
// provider expects.
func Marshal(resp Response) ([]byte, error) {
	body, err := xml.Marshal(resp)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(xml.Header)+len(body))
	out = append(out, []byte(xml.Header)...)
	out = append(out, body...)
	return out, nil
}

package runner

import (
	"strings"

	"github.com/loadgic/loadgic/internal/languages"
)

const probePrefix = "[LG:"

// stderrSplitter separates probe lines from stderr fed in arbitrary chunks.
// Complete lines are classified when their newline arrives. A trailing
// partial line is held back only while it could still become a probe line,
// so prompts written without a newline reach text immediately.
type stderrSplitter struct {
	lang    languages.Language
	text    func(string)
	metric  func(languages.Metric)
	pending string
}

func (s *stderrSplitter) feed(chunk string) {
	data := s.pending + chunk
	s.pending = ""

	var visible strings.Builder
	for {
		i := strings.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		line := data[:i+1]
		data = data[i+1:]
		if m, ok := s.lang.ParseProbe(line); ok {
			s.emitText(&visible)
			s.metric(m)
			continue
		}
		visible.WriteString(line)
	}

	if data != "" {
		if len(data) < chunkSize && mayBecomeProbe(data) {
			s.pending = data
		} else {
			visible.WriteString(data)
		}
	}
	s.emitText(&visible)
}

// flush releases whatever is still held once the stream has ended.
func (s *stderrSplitter) flush() {
	data := s.pending
	s.pending = ""
	if data == "" {
		return
	}
	if m, ok := s.lang.ParseProbe(data); ok {
		s.metric(m)
		return
	}
	s.text(data)
}

func (s *stderrSplitter) emitText(b *strings.Builder) {
	if b.Len() == 0 {
		return
	}
	s.text(b.String())
	b.Reset()
}

// mayBecomeProbe reports whether tail holds a probe prefix or ends with the
// start of one.
func mayBecomeProbe(tail string) bool {
	if strings.Contains(tail, probePrefix) {
		return true
	}
	for n := len(probePrefix) - 1; n > 0; n-- {
		if strings.HasSuffix(tail, probePrefix[:n]) {
			return true
		}
	}
	return false
}

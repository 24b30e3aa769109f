package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dgallion1/fieldmark/internal/export"
)

// handleExport renders the mapped field values into a printable PDF.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	doc, info := sess.Document()
	out, err := export.FilledPDF(info, sess.Fields(), sess.Boxes())
	if err != nil {
		s.writeError(w, err)
		return
	}
	name := strings.TrimSuffix(doc.Name, ".pdf") + "-filled.pdf"
	w.Header().Set("Content-Type", pdfContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(out)
}

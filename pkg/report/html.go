package report

import (
	"html/template"
	"io"
	"time"

	"github.com/aclscan/aclscan/assets"
	"github.com/aclscan/aclscan/internal/pipeline"
)

var permissionsTemplate = template.Must(template.ParseFS(assets.EmbedTemplates, "templates/permissions.html.tmpl"))

type htmlData struct {
	RunID       string
	GeneratedAt string
	Warnings    int
	Folders     []folderView
}

type folderView struct {
	Path string
	Rows []rowView
}

type rowView struct {
	Account accountView
	Access  []accessView
}

type accountView struct {
	Name string
	Type string
}

type accessView struct {
	Entry entryView
	Via   string
}

type entryView struct {
	Access      string
	Rights      string
	IsInherited bool
}

func (w *Writer) writeHTML(out io.Writer, result *pipeline.Result) error {
	data := htmlData{
		RunID:       w.runID,
		GeneratedAt: time.Now().UTC().Format(time.RFC1123),
		Warnings:    len(result.Warnings),
	}

	for _, folder := range result.Folders {
		view := folderView{Path: folder.Path}
		for _, row := range folder.Rows {
			rv := rowView{Account: accountView{
				Name: row.Account.Name,
				Type: row.Account.Type.String(),
			}}
			for _, access := range row.Access {
				rv.Access = append(rv.Access, accessView{
					Entry: entryView{
						Access:      access.Entry.Access.String(),
						Rights:      access.Entry.Rights.String(),
						IsInherited: access.Entry.IsInherited,
					},
					Via: access.Via,
				})
			}
			view.Rows = append(view.Rows, rv)
		}
		data.Folders = append(data.Folders, view)
	}

	return permissionsTemplate.Execute(out, data)
}

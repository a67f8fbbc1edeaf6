package render

import (
	"html/template"
	"io"
	"strings"

	"github.com/codebuildervaibhav/transcribe-uploader/internal/transcription"
)

// AcceptedTypes is the accept attribute of the file picker
var AcceptedTypes = "audio/*," + strings.Join(transcription.SupportedExtensions, ",")

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Audio Transcription</title>
{{if .Live}}<noscript><meta http-equiv="refresh" content="2"></noscript>{{end}}
</head>
<body>
<main>
<h1>Audio Transcription</h1>

<div id="notifications">
{{range .View.Notifications}}
<div class="notification notification-{{.Level}}" data-notification-id="{{.ID}}">
  <span>{{.Message}}</span>
  <form class="action" method="post" action="/notifications/{{.ID}}/dismiss"><button type="submit">&times;</button></form>
</div>
{{end}}
</div>

<form id="drop-area" method="post" action="/files" enctype="multipart/form-data">
  <label>Click to browse or drop audio files here
    <input id="fileInput" type="file" name="files" multiple accept="{{.Accept}}">
  </label>
  <button id="addFiles" type="submit">Add files</button>
</form>

<div id="fileList">
{{range .View.Files}}
  <div class="file-item" data-file-id="{{.ID}}">
    <div class="file-info">
      <div class="file-name">{{.Name}}</div>
      <div class="file-size">{{.Size}}</div>
    </div>
    <div class="file-status">
      <div class="status-icon status-{{.Status}}">{{.Icon}}</div>
      <form class="action" method="post" action="/files/{{.ID}}/remove"><button type="submit" class="remove-btn"{{if not .Removable}} disabled{{end}}>Remove</button></form>
    </div>
  </div>
{{end}}
</div>

<div id="controls"{{if not .View.Controls.Visible}} hidden{{end}}>
  <form class="action" method="post" action="/files/clear"><button type="submit" id="clearFiles"{{if not .View.Controls.ClearEnabled}} disabled{{end}}>Clear all</button></form>
  <form class="action" method="post" action="/run"><button type="submit" id="startTranscription"{{if not .View.Controls.StartEnabled}} disabled{{end}}>Start transcription</button></form>
</div>

<section id="progressSection"{{if not .View.Progress.Visible}} hidden{{end}}>
  <div id="fileProgress">
  {{range .View.Progress.Lines}}
    <div class="file-progress-item" data-progress-id="{{.FileID}}">
      <div class="file-progress-name">{{.Name}}</div>
      <div class="file-progress-status status-{{.Status}}">{{.Message}}</div>
    </div>
  {{end}}
  </div>
  <progress id="overallProgressBar" max="{{.View.Progress.Total}}" value="{{.View.Progress.Processed}}"></progress>
  <div id="progressText">{{.View.Progress.Text}}</div>
</section>

<section id="results">
{{range .View.Results}}
  <div class="result-item result-{{if .Success}}success{{else}}error{{end}}">
    <div class="result-header">
      <div class="result-filename">{{.Filename}}</div>
      <div class="result-badge">{{.Badge}}</div>
    </div>
    <div class="transcription-text">{{.Content}}</div>
    {{if .Languages}}
    <div class="translation-info">{{range .Languages}}<span class="translation-badge">{{.}}</span>{{end}}</div>
    {{end}}
    {{if .DocxSent}}<div class="docx-info">Document sent</div>{{end}}
  </div>
{{end}}
</section>
</main>
<script>
(function () {
  var dropArea = document.getElementById('drop-area');
  var input = document.getElementById('fileInput');
  document.getElementById('addFiles').hidden = true;

  function post(action, body) {
    return fetch(action, {method: 'POST', body: body, headers: {Accept: 'application/json'}});
  }

  function upload(files) {
    if (!files || files.length === 0) {
      return;
    }
    var data = new FormData();
    for (var i = 0; i < files.length; i++) {
      data.append('files', files[i]);
    }
    post('/files', data);
  }

  ['dragenter', 'dragover'].forEach(function (name) {
    dropArea.addEventListener(name, function (e) {
      e.preventDefault();
      e.stopPropagation();
      dropArea.classList.add('highlight');
    });
  });
  ['dragleave', 'drop'].forEach(function (name) {
    dropArea.addEventListener(name, function (e) {
      e.preventDefault();
      e.stopPropagation();
      dropArea.classList.remove('highlight');
    });
  });
  dropArea.addEventListener('drop', function (e) {
    upload(e.dataTransfer.files);
  });
  input.addEventListener('change', function () {
    upload(input.files);
    input.value = '';
  });

  document.addEventListener('submit', function (e) {
    var form = e.target;
    if (form.classList.contains('action')) {
      e.preventDefault();
      post(form.getAttribute('action'));
    }
  });

  function el(tag, cls, text) {
    var node = document.createElement(tag);
    if (cls) {
      node.className = cls;
    }
    if (text !== undefined) {
      node.textContent = text;
    }
    return node;
  }

  function actionForm(action, label, cls, disabled) {
    var form = el('form', 'action');
    form.method = 'post';
    form.setAttribute('action', action);
    var button = el('button', cls, label);
    button.type = 'submit';
    button.disabled = disabled;
    form.appendChild(button);
    return form;
  }

  function render(view) {
    var notes = document.getElementById('notifications');
    notes.replaceChildren();
    (view.notifications || []).forEach(function (n) {
      var item = el('div', 'notification notification-' + n.level);
      item.appendChild(el('span', '', n.message));
      item.appendChild(actionForm('/notifications/' + n.id + '/dismiss', '×', '', false));
      notes.appendChild(item);
    });

    var list = document.getElementById('fileList');
    list.replaceChildren();
    (view.files || []).forEach(function (f) {
      var item = el('div', 'file-item');
      var info = el('div', 'file-info');
      info.appendChild(el('div', 'file-name', f.name));
      info.appendChild(el('div', 'file-size', f.size));
      item.appendChild(info);
      var status = el('div', 'file-status');
      status.appendChild(el('div', 'status-icon status-' + f.status, f.icon));
      status.appendChild(actionForm('/files/' + encodeURIComponent(f.id) + '/remove', 'Remove', 'remove-btn', !f.removable));
      item.appendChild(status);
      list.appendChild(item);
    });

    document.getElementById('controls').hidden = !view.controls.visible;
    document.getElementById('clearFiles').disabled = !view.controls.clear_enabled;
    document.getElementById('startTranscription').disabled = !view.controls.start_enabled;

    var progress = view.progress;
    document.getElementById('progressSection').hidden = !progress.visible;
    var lines = document.getElementById('fileProgress');
    lines.replaceChildren();
    (progress.lines || []).forEach(function (l) {
      var item = el('div', 'file-progress-item');
      item.appendChild(el('div', 'file-progress-name', l.name));
      item.appendChild(el('div', 'file-progress-status status-' + l.status, l.message));
      lines.appendChild(item);
    });
    var bar = document.getElementById('overallProgressBar');
    bar.max = progress.total || 1;
    bar.value = progress.processed;
    document.getElementById('progressText').textContent = progress.text;

    var results = document.getElementById('results');
    results.replaceChildren();
    (view.results || []).forEach(function (r) {
      var item = el('div', 'result-item result-' + (r.success ? 'success' : 'error'));
      var header = el('div', 'result-header');
      header.appendChild(el('div', 'result-filename', r.filename));
      header.appendChild(el('div', 'result-badge', r.badge));
      item.appendChild(header);
      item.appendChild(el('div', 'transcription-text', r.content));
      if (r.languages && r.languages.length > 0) {
        var langs = el('div', 'translation-info');
        r.languages.forEach(function (lang) {
          langs.appendChild(el('span', 'translation-badge', lang));
        });
        item.appendChild(langs);
      }
      if (r.docx_sent) {
        item.appendChild(el('div', 'docx-info', 'Document sent'));
      }
      results.appendChild(item);
    });
  }

  function connect() {
    var scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
    var ws = new WebSocket(scheme + location.host + '/ws/stream');
    ws.onmessage = function (e) {
      render(JSON.parse(e.data));
    };
    ws.onclose = function () {
      setTimeout(connect, 2000);
    };
  }
  connect();
})();
</script>
</body>
</html>
`))

type pageData struct {
	View   View
	Accept string
	Live   bool
}

// Page writes the HTML document for a view. Without scripts the page
// refreshes itself while a run is active or the progress section is shown;
// with scripts it follows the /ws/stream view push.
func Page(w io.Writer, view View) error {
	return pageTemplate.Execute(w, pageData{
		View:   view,
		Accept: AcceptedTypes,
		Live:   view.Progress.Visible || (view.Controls.Visible && !view.Controls.ClearEnabled),
	})
}

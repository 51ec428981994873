package web

import (
	"html/template"
	"net/http"
)

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = indexTmpl.Execute(w, struct{ Room string }{Room: s.coord.Room()})
}

// The page never injects message bodies as HTML; everything goes through
// textContent.
var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Buddy Inbox</title>
  <style>
    body { font-family: sans-serif; max-width: 720px; margin: 24px auto; }
    .badge { padding: 2px 6px; border-radius: 8px; background: #ccc; }
    .online { background: #7c7; }
    #overlay { display: none; position: fixed; inset: 0; background: rgba(0,0,0,.7); color: #fff; padding: 80px; }
    li small { color: #888; }
  </style>
</head>
<body>
  <h1>Buddy Inbox <small id="room">{{.Room}}</small></h1>
  <div id="login">
    <input id="name" placeholder="Your name"> <button onclick="post('/api/login',{name:val('name')})">Log in</button>
  </div>
  <div id="main" hidden>
    <p><b id="me"></b> <span id="presence" class="badge">offline</span> unread: <span id="unread">0</span>
      <button onclick="post('/api/logout')">Log out</button>
      <button onclick="post('/api/lock')">Lock</button>
      <a href="/api/export">Export</a></p>
    <ul id="conversation"></ul>
    <textarea id="body" rows="3" cols="60"></textarea><br>
    <button onclick="post('/api/messages',{body:val('body')}).then(()=>{el('body').value=''})">Send</button>
    <button onclick="post('/api/conversation/read')">Mark read</button>
    <button onclick="del('/api/conversation')">Delete conversation</button>
    <button onclick="del('/api/messages')">Clear all</button>
    <h3>Inbox</h3><ul id="inbox"></ul>
    <h3>Outbox</h3><ul id="outbox"></ul>
  </div>
  <div id="overlay">
    <h2 id="overlay-title">Locked</h2>
    <input id="pin" type="password" placeholder="PIN"> <button onclick="post('/api/unlock',{pin:val('pin')}).then(()=>{el('pin').value=''})">Unlock</button>
  </div>
<script>
const el = id => document.getElementById(id);
const val = id => el(id).value;
function post(url, body) {
  return fetch(url, {method: 'POST', headers: {'Content-Type': 'application/json'}, body: JSON.stringify(body || {})});
}
function del(url) { return fetch(url, {method: 'DELETE'}); }
function fmt(ts) { return new Date(ts).toLocaleString(); }
function list(id, msgs) {
  const ul = el(id);
  ul.replaceChildren();
  for (const m of msgs) {
    const li = document.createElement('li');
    const when = document.createElement('small');
    when.textContent = fmt(m.ts) + ' ';
    li.append(when, document.createTextNode(m.from + ': ' + m.body));
    ul.append(li);
  }
}
function render(s) {
  el('room').textContent = s.room ? 'room ' + s.room : '';
  el('login').hidden = !!s.currentUser;
  el('main').hidden = !s.currentUser;
  el('me').textContent = s.currentUser;
  el('presence').textContent = s.online ? 'online' : 'offline';
  el('presence').className = 'badge' + (s.online ? ' online' : '');
  el('unread').textContent = s.unread;
  list('conversation', s.conversation);
  list('inbox', s.inbox);
  list('outbox', s.outbox);
  el('overlay').style.display = s.locked ? 'block' : 'none';
  el('overlay-title').textContent = s.overlay === 'set' ? 'Set a PIN' : 'Locked';
}
function connect() {
  const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
  ws.onmessage = e => render(JSON.parse(e.data));
  ws.onclose = () => setTimeout(connect, 1000);
}
const room = new URLSearchParams(location.search).get('room');
if (room) { post('/api/room', {room}); }
connect();
</script>
</body>
</html>
`))

package server

import (
	"html/template"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/auth"
)

// The home page is a single self-contained document; the timer cards poll
// /api/status.json and the buttons call the timer API directly.
var homeTmpl = template.Must(template.New("home").Parse(`<!doctype html>
<html lang="ko">
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width,initial-scale=1"/>
  <title>메이플랜드 크리스마스 이벤트 타이머 (Discord DM)</title>
  <style>
    body { font-family: system-ui, -apple-system; background:#0b0f17; color:#e6edf3; max-width:720px; margin:0 auto; padding:24px 14px; }
    .card { background:#121826; border:1px solid rgba(255,255,255,.08); border-radius:12px; padding:16px; margin:12px 0; }
    button, .btn { background:#7aa2ff; color:#0b0f17; border:0; border-radius:8px; padding:10px 14px; font-weight:700; cursor:pointer; text-decoration:none; display:inline-block; }
    .ghost { background:transparent; color:#e6edf3; border:1px solid rgba(255,255,255,.2); }
    .muted { color:#9aa4b2; font-size:14px; }
    #msg { white-space:pre-line; }
  </style>
</head>
<body>
  <h1>🎄 메이플랜드 크리스마스 이벤트 타이머</h1>
  <p class="muted">루돌프 코(3시간) · 반창고(1시간) 쿨타임이 끝나면 디스코드 DM으로 알려드려요.</p>

  {{if .LoggedIn}}
    {{if .ShowBanner}}
    <div class="card" id="banner">
      <div>📩 DM 알림을 받으려면 아래 중 하나만 해주세요 (1회)</div>
      <div class="muted">권장: 개인 서버에 봇 초대 · 대안: 공용 서버 참여로 DM 활성화</div>
      <p>
        <button onclick="openExternal('invite')">봇 초대하기</button>
        <button class="ghost" onclick="openExternal('public')">DM 활성화(공용)</button>
        <button class="ghost" onclick="api('/api/test-send')">테스트 DM</button>
      </p>
    </div>
    {{end}}
    <div class="card">
      <button onclick="api('/api/timer/rudolph')">🦌 루돌프 코 시작 (3시간)</button>
      <button class="ghost" onclick="api('/api/timer/rudolph/cancel')">중지</button>
    </div>
    <div class="card">
      <button onclick="api('/api/timer/bandage')">🩹 반창고 시작 (1시간)</button>
      <button class="ghost" onclick="api('/api/timer/bandage/cancel')">중지</button>
    </div>
    <div class="card" id="msg" class="muted"></div>
    <p><a class="btn ghost" href="/logout">로그아웃</a></p>
  {{else}}
    <p><a class="btn" href="/auth/discord/login">디스코드로 로그인</a></p>
  {{end}}

  <script>
    function openExternal(kind) {
      window.open('/out/' + kind, '_blank', 'noopener');
      fetch('/api/ack/invite', {method:'POST'});
    }
    async function api(path) {
      const res = await fetch(path, {method:'POST'});
      document.getElementById('msg').textContent = await res.text();
    }
    // Report the browser zone so DMs show local times.
    fetch('/api/tz', {
      method: 'POST',
      headers: {'Content-Type':'application/json'},
      body: JSON.stringify({tz: Intl.DateTimeFormat().resolvedOptions().timeZone})
    });
  </script>
</body>
</html>
`))

// Home renders the landing page with login and banner state.
func (a *API) Home(c *gin.Context) {
	session := sessions.Default(c)
	uid, _ := session.Get(auth.SessionKeyUserID).(string)
	inviteClicked, _ := session.Get(sessionKeyInviteClicked).(bool)

	data := struct {
		LoggedIn   bool
		ShowBanner bool
	}{
		LoggedIn:   uid != "",
		ShowBanner: uid != "" && !inviteClicked,
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := homeTmpl.Execute(c.Writer, data); err != nil {
		a.Log.Error("failed to render home page", "error", err.Error())
	}
}

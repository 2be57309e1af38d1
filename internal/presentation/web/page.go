package web

// indexTemplate страница сканера. Картинка приходит только как template.URL
// из application.TrustDeviceImage, иначе html/template заменит ее на #ZgotmplZ.
const indexTemplate = `<!DOCTYPE html>
<html lang="ru">
<head>
<meta charset="utf-8">
<title>fingerprint</title>
<style>
body { font-family: sans-serif; margin: 2em; }
#finger { width: 320px; height: 400px; border: 1px solid #ccc; object-fit: contain; background: #fafafa; }
.state { color: #555; }
</style>
</head>
<body>
<h1>fingerprint</h1>

<section>
  <h2>Устройство</h2>
  {{if .Info.Valid}}
  <p>DeviceID: <code id="device-id">{{.Info.DeviceID}}</code>{{if .Info.Label}} ({{.Info.Label}}){{end}}</p>
  {{else}}
  <p>Устройство не найдено</p>
  {{end}}
  <p>Найдено устройств: {{len .Devices}}</p>
</section>

<section>
  <button id="start" type="button">Начать захват</button>
  <button id="stop" type="button">Остановить захват</button>
  <span class="state">состояние: <span id="state">{{.State}}</span></span>
</section>

<section>
  <img id="finger" alt="отпечаток" {{if not .Image.Empty}}src="{{.Image.URL}}"{{end}}>
</section>

<script>
(function () {
  var img = document.getElementById("finger");
  var state = document.getElementById("state");

  function apply(msg) {
    state.textContent = msg.state;
    if (msg.image) {
      img.src = msg.image;
    } else {
      img.removeAttribute("src");
    }
  }

  function post(path) {
    fetch(path, { method: "POST" })
      .then(function (r) { return r.json(); })
      .then(function (msg) { if (msg.state) { apply(msg); } else { console.log(msg.error); } });
  }

  document.getElementById("start").onclick = function () { post("/api/capture/start"); };
  document.getElementById("stop").onclick = function () { post("/api/capture/stop"); };

  var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
  ws.onmessage = function (ev) { apply(JSON.parse(ev.data)); };
})();
</script>
</body>
</html>
`

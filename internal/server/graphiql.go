package server

// graphiqlPage is a minimal, dependency-free in-browser IDE served on a
// bare GET when Options.GraphiQL is enabled, posting directly to the same
// endpoint it is served from.
var graphiqlPage = []byte(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>GraphiQL</title>
<style>
  body { margin: 0; font-family: -apple-system, sans-serif; }
  textarea { width: 100%; height: 40vh; box-sizing: border-box; }
  pre { background: #f6f8fa; padding: 1em; overflow: auto; }
</style>
</head>
<body>
<h3 style="margin:8px">GraphQL gateway</h3>
<textarea id="query">{ __typename }</textarea>
<button id="run">Run</button>
<pre id="result"></pre>
<script>
document.getElementById('run').addEventListener('click', async () => {
  const query = document.getElementById('query').value;
  const res = await fetch(window.location.pathname, {
    method: 'POST',
    headers: { 'Content-Type': 'application/json' },
    body: JSON.stringify({ query }),
  });
  document.getElementById('result').textContent = JSON.stringify(await res.json(), null, 2);
});
</script>
</body>
</html>`)

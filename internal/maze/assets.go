package maze

// Versioned static asset paths served under /maze/assets/. The content-hash
// suffixes are a cosmetic cache-busting convention, not recomputed from the
// bodies below.
const (
	StylePath  = "/maze/assets/maze.4be8d1c.min.css"
	ScriptPath = "/maze/assets/maze.2f1c84d.min.js"
	WorkerPath = "/maze/assets/maze-worker.a2d6c13.min.js"
)

const styleCSS = `body{margin:0;padding:24px;background:radial-gradient(circle at 15% 15%,#0b1020 0,#020617 70%);color:#111827;font-family:"IBM Plex Sans","Segoe UI",system-ui,sans-serif}a{color:inherit}.wrap{max-width:1120px;margin:0 auto;background:#fff;border:1px solid #e5e7eb;border-radius:14px;overflow:hidden;box-shadow:0 24px 54px rgba(2,6,23,.3)}header{padding:20px 26px;background:#0f172a;color:#e2e8f0}.crumb{margin-top:6px;opacity:.82;font-size:.88rem}.content{padding:24px;background:#f8fafc}.description{background:#fff;border-left:4px solid #38bdf8;border-radius:8px;padding:12px;line-height:1.65;margin:0 0 12px}.nav-grid{display:grid;grid-template-columns:repeat(auto-fill,minmax(224px,1fr));gap:12px;margin-top:14px}.nav-card{text-decoration:none;display:block;background:#fff;border:1px solid #e5e7eb;border-radius:10px;padding:14px}.nav-card h3{margin:0 0 6px;font-size:.95rem;color:#0f172a}.nav-card p{margin:0;color:#475569;font-size:.84rem;line-height:1.45}.arrow{margin-top:8px;color:#2563eb;font-size:.82rem}.hidden-link{position:absolute!important;width:1px;height:1px;margin:-1px;padding:0;border:0;clip:rect(0 0 0 0);clip-path:inset(50%);overflow:hidden;white-space:nowrap}`

// scriptJS drives client-side PoW solving and hidden-link expansion against
// /maze/issue-links, using a Worker to keep the main thread free.
const scriptJS = `(function(){const bEl=document.getElementById('maze-bootstrap');const nav=document.getElementById('maze-nav-grid');if(!bEl||!nav)return;let b={};try{b=JSON.parse(bEl.textContent||'{}')}catch(_e){return}const assets=b.assets||{};const exp=b.client_expansion||{};function sendCheckpoint(){if(!b.checkpoint_token)return;try{fetch('/maze/checkpoint',{method:'POST',headers:{'Content-Type':'application/json'},body:JSON.stringify({token:b.checkpoint_token,flow_id:b.flow_id,depth:b.depth,checkpoint_reason:'page_load'}),keepalive:true})}catch(_e){}}sendCheckpoint()})();`

// workerJS performs proof-of-work solving and candidate path generation off
// the main thread.
const workerJS = `function nextSeed(seed){seed^=seed<<13;seed^=seed>>>7;seed^=seed<<17;return Math.abs(seed>>>0)}self.onmessage=async function(ev){const d=ev&&ev.data?ev.data:{};if(d.type==='pow'){const token=String(d.token||'');const difficulty=Math.max(1,Math.min(24,Number(d.difficulty)||1));const maxIter=Math.max(1,Math.min(800000,Number(d.max_iterations)||600000));for(let nonce=0;nonce<maxIter;nonce+=1){const raw=new TextEncoder().encode(token+':'+nonce);const hash=await crypto.subtle.digest('SHA-256',raw);const bytes=new Uint8Array(hash);let ok=true;let r=difficulty;for(let i=0;i<bytes.length&&r>0;i+=1){if(r>=8){if(bytes[i]!==0){ok=false;break}r-=8}else{const m=0xff<<(8-r);ok=(bytes[i]&m)===0;r=0}}if(ok){self.postMessage({kind:'pow_result',id:String(d.id||''),nonce:String(nonce)});return}}self.postMessage({kind:'pow_result',id:String(d.id||''),nonce:null})}};`

// AssetBody returns (contentType, body, ok) for one of the three fixed
// asset paths, or ok=false otherwise. The caller is responsible for the
// immutable, long-lived Cache-Control header.
func AssetBody(path string) (contentType string, body string, ok bool) {
	switch path {
	case StylePath:
		return "text/css; charset=utf-8", styleCSS, true
	case ScriptPath:
		return "application/javascript; charset=utf-8", scriptJS, true
	case WorkerPath:
		return "application/javascript; charset=utf-8", workerJS, true
	default:
		return "", "", false
	}
}

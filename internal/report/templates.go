package report

// htmlTemplate is the standalone HTML page for a run report.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Plan}} - Run Report</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <style>
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f8fafc;
            --bg-card: #ffffff;
            --text-primary: #1e293b;
            --text-secondary: #64748b;
            --border-color: #e2e8f0;
            --accent-primary: #3b82f6;
            --accent-success: #22c55e;
            --accent-warning: #f59e0b;
            --accent-error: #ef4444;
            --shadow: 0 1px 3px rgba(0, 0, 0, 0.1);
        }

        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background-color: var(--bg-secondary);
            color: var(--text-primary);
            line-height: 1.6;
        }

        .container {
            max-width: 1200px;
            margin: 0 auto;
            padding: 2rem;
        }

        .header {
            background: var(--bg-card);
            border-radius: 12px;
            padding: 2rem;
            margin-bottom: 2rem;
            box-shadow: var(--shadow);
            display: flex;
            justify-content: space-between;
            align-items: center;
            flex-wrap: wrap;
            gap: 1rem;
        }

        .header h1 {
            font-size: 1.75rem;
            font-weight: 700;
        }

        .header .meta {
            display: flex;
            gap: 2rem;
            margin-top: 0.5rem;
            font-size: 0.875rem;
            color: var(--text-secondary);
        }

        .status {
            padding: 0.75rem 1.5rem;
            border-radius: 8px;
            font-weight: 600;
        }

        .status.pass {
            background-color: rgba(34, 197, 94, 0.1);
            color: var(--accent-success);
            border: 1px solid rgba(34, 197, 94, 0.2);
        }

        .status.fail {
            background-color: rgba(239, 68, 68, 0.1);
            color: var(--accent-error);
            border: 1px solid rgba(239, 68, 68, 0.2);
        }

        .cards {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(180px, 1fr));
            gap: 1rem;
            margin-bottom: 2rem;
        }

        .card {
            background: var(--bg-card);
            border-radius: 12px;
            padding: 1.25rem;
            box-shadow: var(--shadow);
        }

        .card .label {
            font-size: 0.8rem;
            text-transform: uppercase;
            letter-spacing: 0.05em;
            color: var(--text-secondary);
        }

        .card .value {
            font-size: 1.5rem;
            font-weight: 700;
            margin-top: 0.25rem;
        }

        .section {
            background: var(--bg-card);
            border-radius: 12px;
            padding: 1.5rem;
            margin-bottom: 2rem;
            box-shadow: var(--shadow);
        }

        .section h2 {
            font-size: 1.2rem;
            margin-bottom: 1rem;
        }

        table {
            width: 100%;
            border-collapse: collapse;
            font-size: 0.9rem;
        }

        th {
            text-align: left;
            padding: 0.6rem 0.75rem;
            color: var(--text-secondary);
            font-weight: 600;
            border-bottom: 2px solid var(--border-color);
        }

        td {
            padding: 0.6rem 0.75rem;
            border-bottom: 1px solid var(--border-color);
        }

        .badge {
            display: inline-block;
            padding: 0.15rem 0.6rem;
            border-radius: 9999px;
            font-size: 0.8rem;
            font-weight: 600;
        }

        .badge.pass {
            background-color: rgba(34, 197, 94, 0.12);
            color: var(--accent-success);
        }

        .badge.fail {
            background-color: rgba(239, 68, 68, 0.12);
            color: var(--accent-error);
        }

        .badge.warn {
            background-color: rgba(245, 158, 11, 0.12);
            color: var(--accent-warning);
        }

        .diagnostics {
            background: var(--bg-secondary);
            border-radius: 8px;
            padding: 0.75rem 1rem;
            margin-top: 0.5rem;
            font-family: ui-monospace, SFMono-Regular, Menlo, monospace;
            font-size: 0.8rem;
            white-space: pre-wrap;
            color: var(--text-secondary);
        }

        .chart-wrap {
            position: relative;
            height: 360px;
        }

        .footer {
            text-align: center;
            font-size: 0.8rem;
            color: var(--text-secondary);
            padding-bottom: 2rem;
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <div>
                <h1>{{.Plan}}</h1>
                <div class="meta">
                    <span>Run {{.RunID}}</span>
                    <span>Policy: {{.Policy}}</span>
                    <span>{{.StartTime.Format "2006-01-02 15:04:05"}}</span>
                    <span>Duration: {{formatDuration .Duration}}</span>
                </div>
            </div>
            {{if .Success}}
            <div class="status pass">PASS</div>
            {{else}}
            <div class="status fail">FAIL</div>
            {{end}}
        </div>

        {{with .Metrics.Overall}}
        <div class="cards">
            <div class="card">
                <div class="label">Requests</div>
                <div class="value">{{formatNumber .Requests}}</div>
            </div>
            <div class="card">
                <div class="label">Errors</div>
                <div class="value">{{formatNumber .Errors}}</div>
            </div>
            <div class="card">
                <div class="label">Error Rate</div>
                <div class="value">{{formatRate .ErrorRate}}</div>
            </div>
            <div class="card">
                <div class="label">Throughput (req/s)</div>
                <div class="value">{{formatRate .Throughput}}</div>
            </div>
            <div class="card">
                <div class="label">Samples</div>
                <div class="value">{{formatNumber .Samples}}</div>
            </div>
        </div>
        {{end}}

        <div class="section">
            <h2>Executors</h2>
            <table>
                <thead>
                    <tr>
                        <th>Name</th>
                        <th>Type</th>
                        <th>State</th>
                        <th>Samples</th>
                        <th>Exit Code</th>
                        <th>Artifacts</th>
                    </tr>
                </thead>
                <tbody>
                    {{range .Executors}}
                    <tr>
                        <td>{{.ID}}</td>
                        <td>{{.Type}}</td>
                        <td><span class="badge {{stateClass .State}}">{{.State}}</span></td>
                        <td>{{formatNumber .SampleCount}}</td>
                        <td>{{.ExitCode}}</td>
                        <td>{{.Artifacts}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
            {{range .Executors}}
            {{if .Error}}
            <div class="diagnostics"><strong>{{.ID}}</strong>: {{.Error}}{{range .Diagnostics}}
{{.}}{{end}}</div>
            {{end}}
            {{end}}
        </div>

        {{if .Metrics.Executors}}
        <div class="section">
            <h2>Latency</h2>
            <table>
                <thead>
                    <tr>
                        <th>Executor</th>
                        <th>Min</th>
                        <th>P50</th>
                        <th>P90</th>
                        <th>P95</th>
                        <th>P99</th>
                        <th>Max</th>
                        <th>Mean</th>
                    </tr>
                </thead>
                <tbody>
                    {{range $id, $s := .Metrics.Executors}}
                    <tr>
                        <td>{{$id}}</td>
                        <td>{{formatLatency $s.Latency.Min}}</td>
                        <td>{{formatLatency $s.Latency.P50}}</td>
                        <td>{{formatLatency $s.Latency.P90}}</td>
                        <td>{{formatLatency $s.Latency.P95}}</td>
                        <td>{{formatLatency $s.Latency.P99}}</td>
                        <td>{{formatLatency $s.Latency.Max}}</td>
                        <td>{{formatLatency $s.Latency.Mean}}</td>
                    </tr>
                    {{end}}
                    {{with .Metrics.Overall}}
                    <tr>
                        <td><strong>overall</strong></td>
                        <td>{{formatLatency .Latency.Min}}</td>
                        <td>{{formatLatency .Latency.P50}}</td>
                        <td>{{formatLatency .Latency.P90}}</td>
                        <td>{{formatLatency .Latency.P95}}</td>
                        <td>{{formatLatency .Latency.P99}}</td>
                        <td>{{formatLatency .Latency.Max}}</td>
                        <td>{{formatLatency .Latency.Mean}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </div>
        {{end}}

        <div class="section">
            <h2>Timeline</h2>
            <div class="chart-wrap">
                <canvas id="timelineChart"></canvas>
            </div>
        </div>

        <div class="footer">Generated by stampede</div>
    </div>

    <script>
        const timeline = {{.TimelineJSON}};

        (function () {
            const canvas = document.getElementById('timelineChart');
            if (!timeline.length) {
                canvas.parentElement.innerHTML = '<p>No samples recorded.</p>';
                return;
            }

            const byExecutor = {};
            timeline.forEach(p => {
                if (p.kind !== 'latency') return;
                (byExecutor[p.executor] = byExecutor[p.executor] || []).push({
                    x: p.timestamp,
                    y: p.value
                });
            });

            const palette = ['#3b82f6', '#22c55e', '#f59e0b', '#ef4444',
                '#8b5cf6', '#06b6d4', '#ec4899'];
            const datasets = Object.keys(byExecutor).map((id, i) => ({
                label: id,
                data: byExecutor[id],
                borderColor: palette[i % palette.length],
                backgroundColor: palette[i % palette.length],
                pointRadius: 2,
                showLine: false
            }));

            if (!datasets.length) {
                canvas.parentElement.innerHTML = '<p>No latency samples recorded.</p>';
                return;
            }

            new Chart(canvas, {
                type: 'scatter',
                data: { datasets },
                options: {
                    responsive: true,
                    maintainAspectRatio: false,
                    scales: {
                        x: {
                            type: 'category',
                            ticks: { maxTicksLimit: 12 },
                            title: { display: true, text: 'Time' }
                        },
                        y: {
                            beginAtZero: true,
                            title: { display: true, text: 'Latency (ms)' }
                        }
                    }
                }
            });
        })();
    </script>
</body>
</html>
`

// Package render turns raw model output into the tabbed HTML page served by
// the UI. Tagged blocks such as <analysis> and <result> become tabs, with
// the result tab first. Markdown is rendered with goldmark and the output is
// sanitised with bluemonday before it reaches the template.
package render

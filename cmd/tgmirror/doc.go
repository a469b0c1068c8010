// Command tgmirror mirrors a Telegram chat into a local archive: it syncs
// message metadata into SQLite, downloads attached media, classifies message
// text into tags, and renders the archive as a Markdown document.
package main

// Package vcs extracts diffs and commit messages from a version-controlled
// working copy.
//
// It supports git and subversion by shelling out to the respective client
// with equivalent arguments. The system is detected by walking up from the
// target directory looking for a .git or .svn marker; [Detect] reports which
// one applies. Revision ranges use git's A..B form everywhere and are
// translated to svn's A:B form internally.
package vcs
